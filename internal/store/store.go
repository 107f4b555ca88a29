package store

import (
	"context"
	"errors"
	"time"

	"escrow-bot-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound           = errors.New("record not found")
	ErrDuplicateId        = errors.New("duplicate id")
	ErrPreconditionFailed = errors.New("precondition failed: status changed concurrently")
)

// EnsureUserParams identifies a participant seen for the first time.
type EnsureUserParams struct {
	UserId      string
	DisplayName string
}

// DealUpdate carries the columns written alongside a status transition.
// Nil/empty fields are left untouched, so a transition never clears a
// previously written marker.
type DealUpdate struct {
	TransferId       string
	DisputeReason    string
	DisputeInitiator string
	DisputedAt       *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	RefundedAt       *time.Time
}

// DealStore defines the contract that every backend (SQLite, PostgreSQL, ...) must satisfy.
type DealStore interface {
	// --- Users ---
	EnsureUser(ctx context.Context, params EnsureUserParams) (*models.User, error)
	FindUserById(ctx context.Context, userId string) (*models.User, error)
	FindUserByPaymentAccount(ctx context.Context, accountId string) (*models.User, error)
	SetPaymentAccount(ctx context.Context, userId, accountId string, status models.PaymentAccountStatus) error
	IncrementUserCounter(ctx context.Context, userId string, counter models.UserCounter, delta int64) error

	// --- Deals ---
	InsertDeal(ctx context.Context, deal *models.Deal) error
	FindDealById(ctx context.Context, dealId string) (*models.Deal, error)
	FindDealByIntent(ctx context.Context, intentId string) (*models.Deal, error)
	ListDealsForUser(ctx context.Context, userId string, limit int) ([]models.Deal, error)
	ListStaleDeals(ctx context.Context, status models.DealStatus, createdBefore time.Time, limit int) ([]models.Deal, error)
	ConditionalUpdateDealStatus(ctx context.Context, dealId string, expected, next models.DealStatus, update DealUpdate) error

	// --- Webhook events ---
	HasProcessedEvent(ctx context.Context, eventId string) (bool, error)
	RecordProcessedEvent(ctx context.Context, eventId, kind string) error

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}

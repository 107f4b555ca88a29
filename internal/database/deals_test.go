package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDb(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// A second connection would see a different in-memory database.
	db.SetMaxOpenConns(1)

	service := NewServiceFromDB(db)
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	ctx := context.Background()
	for _, id := range []string{"buyer", "seller"} {
		if _, err := service.EnsureUser(ctx, store.EnsureUserParams{UserId: id, DisplayName: id}); err != nil {
			t.Fatalf("Failed to insert test user %s: %v", id, err)
		}
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func newTestDeal(id, intent string) *models.Deal {
	now := time.Now().UTC()
	return &models.Deal{
		Id:              id,
		BuyerId:         "buyer",
		SellerId:        "seller",
		Amount:          10000,
		Currency:        "usd",
		Description:     "Vintage camera",
		Status:          models.DealStatusCreated,
		PaymentIntentId: intent,
		FeePercent:      3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestInsertDeal_RoundTrip(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	deal := newTestDeal("DL-AAAAAA", "pi_1")
	deal.Milestones = []models.Milestone{
		{Description: "Deposit", Amount: 4000},
		{Description: "Delivery", Amount: 6000},
	}

	if err := service.InsertDeal(ctx, deal); err != nil {
		t.Fatalf("InsertDeal failed: %v", err)
	}

	got, err := service.FindDealById(ctx, "DL-AAAAAA")
	if err != nil {
		t.Fatalf("FindDealById failed: %v", err)
	}
	if got.Status != models.DealStatusCreated {
		t.Errorf("Expected status created, got %s", got.Status)
	}
	if got.PaymentIntentId != "pi_1" {
		t.Errorf("Expected intent pi_1, got %s", got.PaymentIntentId)
	}
	if got.CompletedAt != nil || got.CancelledAt != nil || got.DisputedAt != nil {
		t.Errorf("Expected no terminal markers on a new deal")
	}
	if len(got.Milestones) != 2 || got.Milestones[1].Description != "Delivery" {
		t.Fatalf("Expected 2 ordered milestones, got %+v", got.Milestones)
	}
	if got.Milestones[0].Status != models.MilestonePending {
		t.Errorf("Expected pending milestone, got %s", got.Milestones[0].Status)
	}

	byIntent, err := service.FindDealByIntent(ctx, "pi_1")
	if err != nil {
		t.Fatalf("FindDealByIntent failed: %v", err)
	}
	if byIntent.Id != deal.Id {
		t.Errorf("Expected deal %s, got %s", deal.Id, byIntent.Id)
	}
}

func TestInsertDeal_DuplicateId(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.InsertDeal(ctx, newTestDeal("DL-DUPDUP", "pi_1")); err != nil {
		t.Fatalf("InsertDeal failed: %v", err)
	}

	err := service.InsertDeal(ctx, newTestDeal("DL-DUPDUP", "pi_2"))
	if !errors.Is(err, store.ErrDuplicateId) {
		t.Fatalf("Expected ErrDuplicateId, got %v", err)
	}
}

func TestFindDeal_NotFound(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.FindDealById(ctx, "DL-NOPE00"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound by id, got %v", err)
	}
	if _, err := service.FindDealByIntent(ctx, "pi_missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound by intent, got %v", err)
	}
}

func TestConditionalUpdateDealStatus(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if err := service.InsertDeal(ctx, newTestDeal("DL-COND01", "pi_1")); err != nil {
		t.Fatalf("InsertDeal failed: %v", err)
	}

	if err := service.ConditionalUpdateDealStatus(ctx, "DL-COND01", models.DealStatusCreated, models.DealStatusPaid, store.DealUpdate{}); err != nil {
		t.Fatalf("created -> paid failed: %v", err)
	}

	// Second attempt from the stale status must lose.
	err := service.ConditionalUpdateDealStatus(ctx, "DL-COND01", models.DealStatusCreated, models.DealStatusPaid, store.DealUpdate{})
	if !errors.Is(err, store.ErrPreconditionFailed) {
		t.Fatalf("Expected ErrPreconditionFailed, got %v", err)
	}

	completedAt := time.Now().UTC()
	err = service.ConditionalUpdateDealStatus(ctx, "DL-COND01", models.DealStatusPaid, models.DealStatusCompleted, store.DealUpdate{
		TransferId:  "tr_1",
		CompletedAt: &completedAt,
	})
	if err != nil {
		t.Fatalf("paid -> completed failed: %v", err)
	}

	got, err := service.FindDealById(ctx, "DL-COND01")
	if err != nil {
		t.Fatalf("FindDealById failed: %v", err)
	}
	if got.Status != models.DealStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if got.TransferId != "tr_1" {
		t.Errorf("Expected transfer tr_1, got %s", got.TransferId)
	}
	if got.CompletedAt == nil {
		t.Errorf("Expected completed_at to be set")
	}
	if got.DisputedAt != nil || got.CancelledAt != nil {
		t.Errorf("Expected other terminal markers to stay empty")
	}

	if err := service.ConditionalUpdateDealStatus(ctx, "DL-MISSING", models.DealStatusPaid, models.DealStatusCompleted, store.DealUpdate{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown deal, got %v", err)
	}
}

func TestListDeals(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	old := newTestDeal("DL-OLD001", "pi_old")
	old.CreatedAt = time.Now().UTC().Add(-72 * time.Hour)
	if err := service.InsertDeal(ctx, old); err != nil {
		t.Fatalf("InsertDeal failed: %v", err)
	}
	if err := service.InsertDeal(ctx, newTestDeal("DL-NEW001", "pi_new")); err != nil {
		t.Fatalf("InsertDeal failed: %v", err)
	}

	deals, err := service.ListDealsForUser(ctx, "seller", 10)
	if err != nil {
		t.Fatalf("ListDealsForUser failed: %v", err)
	}
	if len(deals) != 2 || deals[0].Id != "DL-NEW001" {
		t.Fatalf("Expected newest deal first, got %+v", deals)
	}

	stale, err := service.ListStaleDeals(ctx, models.DealStatusCreated, time.Now().UTC().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("ListStaleDeals failed: %v", err)
	}
	if len(stale) != 1 || stale[0].Id != "DL-OLD001" {
		t.Fatalf("Expected only the old deal to be stale, got %+v", stale)
	}
}

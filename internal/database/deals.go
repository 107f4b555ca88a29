package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

func scanDeal(row rowScanner) (*models.Deal, error) {
	var deal models.Deal
	var status string
	var disputedAt, completedAt, cancelledAt, refundedAt sql.NullTime
	err := row.Scan(&deal.Id, &deal.BuyerId, &deal.SellerId, &deal.Amount, &deal.Currency,
		&deal.Description, &status, &deal.PaymentIntentId, &deal.TransferId, &deal.FeePercent,
		&deal.DisputeReason, &deal.DisputeInitiator,
		&disputedAt, &completedAt, &cancelledAt, &refundedAt,
		&deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		return nil, err
	}

	deal.Status = models.DealStatus(status)
	deal.DisputedAt = nullTimePtr(disputedAt)
	deal.CompletedAt = nullTimePtr(completedAt)
	deal.CancelledAt = nullTimePtr(cancelledAt)
	deal.RefundedAt = nullTimePtr(refundedAt)
	return &deal, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// InsertDeal persists a new deal and its milestones atomically.
func (s *Service) InsertDeal(ctx context.Context, deal *models.Deal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, queryInsertDeal,
		deal.Id, deal.BuyerId, deal.SellerId, deal.Amount, deal.Currency, deal.Description,
		string(deal.Status), deal.PaymentIntentId, deal.FeePercent, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("deal %s: %w", deal.Id, store.ErrDuplicateId)
		}
		return fmt.Errorf("failed to insert deal: %w", err)
	}

	for i := range deal.Milestones {
		m := &deal.Milestones[i]
		if m.Id == "" {
			m.Id = uuid.New().String()
		}
		if m.Status == "" {
			m.Status = models.MilestonePending
		}
		m.DealId = deal.Id
		m.Position = i
		if _, err := tx.ExecContext(ctx, queryInsertMilestone, m.Id, m.DealId, m.Position, m.Description, m.Amount, string(m.Status)); err != nil {
			return fmt.Errorf("failed to insert milestone %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Deal inserted",
		zap.String("deal_id", deal.Id),
		zap.String("buyer_id", deal.BuyerId),
		zap.String("seller_id", deal.SellerId),
		zap.Int64("amount", deal.Amount),
		zap.Int("milestones", len(deal.Milestones)))
	return nil
}

func (s *Service) FindDealById(ctx context.Context, dealId string) (*models.Deal, error) {
	deal, err := scanDeal(s.db.QueryRowContext(ctx, queryGetDealById, dealId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deal %s: %w", dealId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query deal: %w", err)
	}

	if err := s.loadMilestones(ctx, deal); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *Service) FindDealByIntent(ctx context.Context, intentId string) (*models.Deal, error) {
	deal, err := scanDeal(s.db.QueryRowContext(ctx, queryGetDealByIntent, intentId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deal for intent %s: %w", intentId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query deal by intent: %w", err)
	}

	if err := s.loadMilestones(ctx, deal); err != nil {
		return nil, err
	}
	return deal, nil
}

func (s *Service) ListDealsForUser(ctx context.Context, userId string, limit int) ([]models.Deal, error) {
	return s.queryDeals(ctx, queryListDealsForUser, userId, userId, limit)
}

func (s *Service) ListStaleDeals(ctx context.Context, status models.DealStatus, createdBefore time.Time, limit int) ([]models.Deal, error) {
	return s.queryDeals(ctx, queryListStaleDeals, string(status), createdBefore.UTC(), limit)
}

func (s *Service) queryDeals(ctx context.Context, query string, args ...any) ([]models.Deal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query deals: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan deal row: %w", err)
		}
		deals = append(deals, *deal)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during deal row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating deal rows: %w", err)
	}
	return deals, nil
}

func (s *Service) loadMilestones(ctx context.Context, deal *models.Deal) error {
	rows, err := s.db.QueryContext(ctx, queryGetMilestones, deal.Id)
	if err != nil {
		return fmt.Errorf("unable to query milestones: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var m models.Milestone
		var status string
		if err := rows.Scan(&m.Id, &m.DealId, &m.Position, &m.Description, &m.Amount, &status); err != nil {
			return fmt.Errorf("unable to scan milestone: %w", err)
		}
		m.Status = models.MilestoneStatus(status)
		deal.Milestones = append(deal.Milestones, m)
	}
	return rows.Err()
}

// ConditionalUpdateDealStatus moves a deal from expected to next. It fails with
// store.ErrPreconditionFailed when the stored status is no longer expected, which
// is how two concurrent transitions on one deal are serialized.
func (s *Service) ConditionalUpdateDealStatus(ctx context.Context, dealId string, expected, next models.DealStatus, update store.DealUpdate) error {
	result, err := s.db.ExecContext(ctx, queryConditionalUpdateDeal,
		string(next), update.TransferId, update.DisputeReason, update.DisputeInitiator,
		utcPtr(update.DisputedAt), utcPtr(update.CompletedAt), utcPtr(update.CancelledAt), utcPtr(update.RefundedAt),
		time.Now().UTC(), dealId, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update deal status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 1 {
		zap.L().Info("Deal status updated",
			zap.String("deal_id", dealId),
			zap.String("from", string(expected)),
			zap.String("to", string(next)))
		return nil
	}

	var one int
	if err := s.db.QueryRowContext(ctx, queryDealExists, dealId).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("deal %s: %w", dealId, store.ErrNotFound)
		}
		return fmt.Errorf("failed to check deal existence: %w", err)
	}
	return fmt.Errorf("deal %s expected %s: %w", dealId, expected, store.ErrPreconditionFailed)
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

const uniqueViolation = "23505"

func scanDeal(row pgx.Row) (*models.Deal, error) {
	var deal models.Deal
	var status string
	err := row.Scan(&deal.Id, &deal.BuyerId, &deal.SellerId, &deal.Amount, &deal.Currency,
		&deal.Description, &status, &deal.PaymentIntentId, &deal.TransferId, &deal.FeePercent,
		&deal.DisputeReason, &deal.DisputeInitiator,
		&deal.DisputedAt, &deal.CompletedAt, &deal.CancelledAt, &deal.RefundedAt,
		&deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		return nil, err
	}
	deal.Status = models.DealStatus(status)
	return &deal, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (s *Service) InsertDeal(ctx context.Context, deal *models.Deal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, queryInsertDeal,
		deal.Id, deal.BuyerId, deal.SellerId, deal.Amount, deal.Currency, deal.Description,
		string(deal.Status), deal.PaymentIntentId, deal.FeePercent, deal.CreatedAt, deal.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("deal %s: %w", deal.Id, store.ErrDuplicateId)
		}
		return fmt.Errorf("failed to insert deal: %w", err)
	}

	batch := &pgx.Batch{}
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
		batch.Queue(queryInsertMilestone, m.Id, m.DealId, m.Position, m.Description, m.Amount, string(m.Status))
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert milestones: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
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
	deal, err := scanDeal(s.pool.QueryRow(ctx, queryGetDealById, dealId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deal %s: %w", dealId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query deal: %w", err)
	}
	return deal, s.loadMilestones(ctx, deal)
}

func (s *Service) FindDealByIntent(ctx context.Context, intentId string) (*models.Deal, error) {
	deal, err := scanDeal(s.pool.QueryRow(ctx, queryGetDealByIntent, intentId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("deal for intent %s: %w", intentId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query deal by intent: %w", err)
	}
	return deal, s.loadMilestones(ctx, deal)
}

func (s *Service) ListDealsForUser(ctx context.Context, userId string, limit int) ([]models.Deal, error) {
	return s.queryDeals(ctx, queryListDealsForUser, userId, limit)
}

func (s *Service) ListStaleDeals(ctx context.Context, status models.DealStatus, createdBefore time.Time, limit int) ([]models.Deal, error) {
	return s.queryDeals(ctx, queryListStaleDeals, string(status), createdBefore, limit)
}

func (s *Service) queryDeals(ctx context.Context, query string, args ...any) ([]models.Deal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to query deals: %w", err)
	}
	defer rows.Close()

	var deals []models.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan deal row: %w", err)
		}
		deals = append(deals, *deal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deal rows: %w", err)
	}
	return deals, nil
}

func (s *Service) loadMilestones(ctx context.Context, deal *models.Deal) error {
	rows, err := s.pool.Query(ctx, queryGetMilestones, deal.Id)
	if err != nil {
		return fmt.Errorf("unable to query milestones: %w", err)
	}
	defer rows.Close()

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

func (s *Service) ConditionalUpdateDealStatus(ctx context.Context, dealId string, expected, next models.DealStatus, update store.DealUpdate) error {
	tag, err := s.pool.Exec(ctx, queryConditionalUpdateDeal,
		string(next), update.TransferId, update.DisputeReason, update.DisputeInitiator,
		update.DisputedAt, update.CompletedAt, update.CancelledAt, update.RefundedAt,
		dealId, string(expected))
	if err != nil {
		return fmt.Errorf("failed to update deal status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		zap.L().Info("Deal status updated",
			zap.String("deal_id", dealId),
			zap.String("from", string(expected)),
			zap.String("to", string(next)))
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, queryDealExists, dealId).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check deal existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("deal %s: %w", dealId, store.ErrNotFound)
	}
	return fmt.Errorf("deal %s expected %s: %w", dealId, expected, store.ErrPreconditionFailed)
}

func (s *Service) HasProcessedEvent(ctx context.Context, eventId string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, queryGetProcessedEvent, eventId).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

func (s *Service) RecordProcessedEvent(ctx context.Context, eventId, kind string) error {
	if _, err := s.pool.Exec(ctx, queryInsertProcessedEvent, uuid.New().String(), eventId, kind); err != nil {
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

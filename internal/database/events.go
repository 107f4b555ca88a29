package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func (s *Service) HasProcessedEvent(ctx context.Context, eventId string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, queryGetProcessedEvent, eventId).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check processed event: %w", err)
}

func (s *Service) RecordProcessedEvent(ctx context.Context, eventId, kind string) error {
	_, err := s.db.ExecContext(ctx, queryInsertProcessedEvent, uuid.New().String(), eventId, kind, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}

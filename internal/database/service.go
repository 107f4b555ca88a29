/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.DealStore.
var _ store.DealStore = (*Service)(nil)

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewServiceFromDB wraps an already opened handle. Used by tests with ":memory:" databases.
func NewServiceFromDB(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) InitSchema() error {
	schema := `
	-- Participants, keyed by their chat identity
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		payment_account_id TEXT NOT NULL DEFAULT '',
		payment_account_status TEXT NOT NULL DEFAULT 'none',
		total_deals INTEGER NOT NULL DEFAULT 0,
		successful_deals INTEGER NOT NULL DEFAULT 0,
		total_volume INTEGER NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT 1,
		banned BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_payment_account ON users(payment_account_id);

	-- Deals; status is only ever changed through a guarded UPDATE
	CREATE TABLE IF NOT EXISTS deals (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL REFERENCES users(id),
		seller_id TEXT NOT NULL REFERENCES users(id),
		amount INTEGER NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_intent_id TEXT NOT NULL UNIQUE,
		transfer_id TEXT NOT NULL DEFAULT '',
		fee_percent INTEGER NOT NULL CHECK (fee_percent BETWEEN 0 AND 10),
		dispute_reason TEXT NOT NULL DEFAULT '',
		dispute_initiator TEXT NOT NULL DEFAULT '',
		disputed_at TIMESTAMP,
		completed_at TIMESTAMP,
		cancelled_at TIMESTAMP,
		refunded_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		CHECK (buyer_id <> seller_id)
	);

	CREATE INDEX IF NOT EXISTS idx_deals_buyer ON deals(buyer_id);
	CREATE INDEX IF NOT EXISTS idx_deals_seller ON deals(seller_id);
	CREATE INDEX IF NOT EXISTS idx_deals_status_created ON deals(status, created_at);

	CREATE TABLE IF NOT EXISTS milestones (
		id TEXT PRIMARY KEY,
		deal_id TEXT NOT NULL REFERENCES deals(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		UNIQUE(deal_id, position)
	);

	-- Gateway events that were fully handled
	CREATE TABLE IF NOT EXISTS processed_events (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		received_at TIMESTAMP NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

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

package pgstore

import (
	"context"
	"fmt"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.DealStore.
var _ store.DealStore = (*Service)(nil)

// Service is the PostgreSQL deal store.
type Service struct {
	pool *pgxpool.Pool
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(min(cfg.MaxIdleConns, cfg.MaxOpenConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	zap.L().Info("Connecting to PostgreSQL",
		zap.String("host", poolCfg.ConnConfig.Host),
		zap.String("database", poolCfg.ConnConfig.Database))

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{pool: pool}
	if err := service.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("PostgreSQL store initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Service) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	payment_account_id TEXT NOT NULL DEFAULT '',
	payment_account_status TEXT NOT NULL DEFAULT 'none',
	total_deals BIGINT NOT NULL DEFAULT 0,
	successful_deals BIGINT NOT NULL DEFAULT 0,
	total_volume BIGINT NOT NULL DEFAULT 0,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	banned BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_users_payment_account ON users(payment_account_id);

CREATE TABLE IF NOT EXISTS deals (
	id TEXT PRIMARY KEY,
	buyer_id TEXT NOT NULL REFERENCES users(id),
	seller_id TEXT NOT NULL REFERENCES users(id),
	amount BIGINT NOT NULL CHECK (amount > 0),
	currency TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL,
	payment_intent_id TEXT NOT NULL UNIQUE,
	transfer_id TEXT NOT NULL DEFAULT '',
	fee_percent BIGINT NOT NULL CHECK (fee_percent BETWEEN 0 AND 10),
	dispute_reason TEXT NOT NULL DEFAULT '',
	dispute_initiator TEXT NOT NULL DEFAULT '',
	disputed_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	cancelled_at TIMESTAMPTZ,
	refunded_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
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
	amount BIGINT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	UNIQUE (deal_id, position)
);

CREATE TABLE IF NOT EXISTS processed_events (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
);
`

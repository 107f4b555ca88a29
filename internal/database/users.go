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
	"errors"
	"fmt"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var status string
	err := row.Scan(&user.Id, &user.DisplayName, &user.PaymentAccountId, &status,
		&user.TotalDeals, &user.SuccessfulDeals, &user.TotalVolume,
		&user.Active, &user.Banned, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	user.PaymentAccountStatus = models.PaymentAccountStatus(status)
	return &user, nil
}

// EnsureUser creates the user on first interaction; an existing row is returned untouched.
func (s *Service) EnsureUser(ctx context.Context, params store.EnsureUserParams) (*models.User, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx, queryInsertUserIfMissing, params.UserId, params.DisplayName)
	if err != nil {
		zap.L().Error("Failed to insert user", zap.String("user_id", params.UserId), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	if rowsAffected, err := result.RowsAffected(); err == nil && rowsAffected > 0 {
		zap.L().Info("User created", zap.String("user_id", params.UserId), zap.String("display_name", params.DisplayName))
	}

	return s.FindUserById(ctx, params.UserId)
}

func (s *Service) FindUserById(ctx context.Context, userId string) (*models.User, error) {
	zap.L().Debug("Querying user by ID", zap.String("user_id", userId))

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
		}
		zap.L().Error("Failed to query user by ID", zap.String("user_id", userId), zap.Error(err))
		return nil, fmt.Errorf("unable to query user by ID: %w", err)
	}
	return user, nil
}

func (s *Service) FindUserByPaymentAccount(ctx context.Context, accountId string) (*models.User, error) {
	if accountId == "" {
		return nil, fmt.Errorf("payment account %q: %w", accountId, store.ErrNotFound)
	}

	user, err := scanUser(s.db.QueryRowContext(ctx, queryGetUserByPaymentAccount, accountId))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment account %s: %w", accountId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query user by payment account: %w", err)
	}
	return user, nil
}

func (s *Service) SetPaymentAccount(ctx context.Context, userId, accountId string, status models.PaymentAccountStatus) error {
	result, err := s.db.ExecContext(ctx, queryUpdatePaymentAccount, accountId, string(status), userId)
	if err != nil {
		return fmt.Errorf("unable to update payment account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
	}

	zap.L().Info("Payment account updated",
		zap.String("user_id", userId),
		zap.String("account_id", accountId),
		zap.String("status", string(status)))
	return nil
}

func (s *Service) IncrementUserCounter(ctx context.Context, userId string, counter models.UserCounter, delta int64) error {
	switch counter {
	case models.CounterTotalDeals, models.CounterSuccessfulDeals, models.CounterTotalVolume:
	default:
		return fmt.Errorf("unknown user counter %q", counter)
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf(queryIncrementUserCounterFmt, counter), delta, userId)
	if err != nil {
		return fmt.Errorf("unable to increment %s: %w", counter, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
	}
	return nil
}

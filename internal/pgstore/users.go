package pgstore

import (
	"context"
	"errors"
	"fmt"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

func scanUser(row pgx.Row) (*models.User, error) {
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

func (s *Service) EnsureUser(ctx context.Context, params store.EnsureUserParams) (*models.User, error) {
	if params.UserId == "" {
		return nil, fmt.Errorf("user id cannot be empty")
	}

	tag, err := s.pool.Exec(ctx, queryInsertUserIfMissing, params.UserId, params.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}
	if tag.RowsAffected() > 0 {
		zap.L().Info("User created", zap.String("user_id", params.UserId), zap.String("display_name", params.DisplayName))
	}

	return s.FindUserById(ctx, params.UserId)
}

func (s *Service) FindUserById(ctx context.Context, userId string) (*models.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx, queryGetUserById, userId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return user, nil
}

func (s *Service) FindUserByPaymentAccount(ctx context.Context, accountId string) (*models.User, error) {
	if accountId == "" {
		return nil, fmt.Errorf("payment account id cannot be empty")
	}

	user, err := scanUser(s.pool.QueryRow(ctx, queryGetUserByPaymentAccount, accountId))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user with payment account %s: %w", accountId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query user by payment account: %w", err)
	}
	return user, nil
}

func (s *Service) SetPaymentAccount(ctx context.Context, userId, accountId string, status models.PaymentAccountStatus) error {
	tag, err := s.pool.Exec(ctx, queryUpdatePaymentAccount, accountId, string(status), userId)
	if err != nil {
		return fmt.Errorf("unable to update payment account: %w", err)
	}
	if tag.RowsAffected() == 0 {
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

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(queryIncrementUserCounterFmt, string(counter)), delta, userId)
	if err != nil {
		return fmt.Errorf("unable to increment %s: %w", counter, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userId, store.ErrNotFound)
	}
	return nil
}

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

package common

import (
	"context"
	"fmt"

	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"go.uber.org/zap"
)

// UserInfo represents simplified user information for command-line utilities
type UserInfo struct {
	Id              string
	Name            string
	AccountStatus   models.PaymentAccountStatus
	TotalDeals      int64
	SuccessfulDeals int64
	TotalVolume     string
}

// LookupUser loads a participant and their recent deals for display.
func LookupUser(ctx context.Context, dealStore store.DealStore, userId string, dealLimit int, currency string) (*UserInfo, []models.Deal, error) {
	zap.L().Info("Looking up user", zap.String("user_id", userId))
	user, err := dealStore.FindUserById(ctx, userId)
	if err != nil {
		return nil, nil, fmt.Errorf("user not found: %w", err)
	}

	deals, err := dealStore.ListDealsForUser(ctx, userId, dealLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get deals: %w", err)
	}

	info := &UserInfo{
		Id:              user.Id,
		Name:            user.DisplayName,
		AccountStatus:   user.PaymentAccountStatus,
		TotalDeals:      user.TotalDeals,
		SuccessfulDeals: user.SuccessfulDeals,
		TotalVolume:     escrow.FormatAmount(user.TotalVolume, currency),
	}

	zap.L().Info("Retrieved user", zap.String("user_id", userId), zap.Int("deals", len(deals)))
	return info, deals, nil
}

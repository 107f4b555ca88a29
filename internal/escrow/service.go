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

package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"escrow-bot-go/internal/models"
	"escrow-bot-go/internal/store"

	"go.uber.org/zap"
)

const (
	DefaultMinAmount  int64 = 100
	DefaultFeePercent int64 = 3
	MaxFeePercent     int64 = 10

	maxDescriptionLength = 500
	maxReasonLength      = 500
	dealIdAttempts       = 5
	systemActor          = "system"
)

// Gateway is the payment processor capability the state machine drives.
// Implementations must treat correlationId as an idempotency key.
type Gateway interface {
	CreateHeldPayment(ctx context.Context, amount int64, currency, correlationId string, metadata models.PaymentMetadata) (*models.HeldPayment, error)
	CreateTransfer(ctx context.Context, amount int64, currency, destinationAccount, correlationId string, metadata models.PaymentMetadata) (*models.Transfer, error)
	CancelPayment(ctx context.Context, intentId string) error
}

// Onboarder creates and links payout accounts for sellers.
type Onboarder interface {
	CreateConnectedAccount(ctx context.Context, userId string) (*models.ConnectedAccount, error)
	CreateOnboardingLink(ctx context.Context, accountId string) (string, error)
}

// Notifier delivers participant messages. Delivery failures are the
// implementation's problem and are never reported back.
type Notifier interface {
	Notify(ctx context.Context, userId string, kind models.MessageKind, payload models.NotificationPayload)
}

// ServiceConfig contains configuration for Service
type ServiceConfig struct {
	Store             store.DealStore
	Gateway           Gateway
	Onboarder         Onboarder
	Notifier          Notifier
	MinAmount         int64
	DefaultFeePercent int64
	DefaultCurrency   string
}

// Service is the deal lifecycle state machine. It is the only writer of deal status.
type Service struct {
	store     store.DealStore
	gateway   Gateway
	onboarder Onboarder
	notifier  Notifier

	minAmount         int64
	defaultFeePercent int64
	defaultCurrency   string

	now       func() time.Time
	newDealId func() (string, error)
}

// NewService creates a new deal state machine
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		store:             cfg.Store,
		gateway:           cfg.Gateway,
		onboarder:         cfg.Onboarder,
		notifier:          cfg.Notifier,
		minAmount:         cfg.MinAmount,
		defaultFeePercent: cfg.DefaultFeePercent,
		defaultCurrency:   strings.ToLower(cfg.DefaultCurrency),
		now:               func() time.Time { return time.Now().UTC() },
		newDealId:         NewDealId,
	}
	if s.minAmount <= 0 {
		s.minAmount = DefaultMinAmount
	}
	if s.defaultFeePercent < 0 || s.defaultFeePercent > MaxFeePercent {
		s.defaultFeePercent = DefaultFeePercent
	}
	if s.defaultCurrency == "" {
		s.defaultCurrency = "usd"
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	return s
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, models.MessageKind, models.NotificationPayload) {}

// MilestoneParams describes one informational milestone of a new deal
type MilestoneParams struct {
	Description string
	Amount      int64
}

// CreateDealParams contains the parameters for creating a deal.
// A nil FeePercent selects the configured default.
type CreateDealParams struct {
	BuyerId     string
	SellerId    string
	Amount      int64
	Currency    string
	Description string
	FeePercent  *int64
	Milestones  []MilestoneParams
}

func (s *Service) validateCreate(params *CreateDealParams) error {
	params.Description = strings.TrimSpace(params.Description)
	params.Currency = strings.ToLower(strings.TrimSpace(params.Currency))
	if params.Currency == "" {
		params.Currency = s.defaultCurrency
	}
	if params.FeePercent == nil {
		fee := s.defaultFeePercent
		params.FeePercent = &fee
	}

	if params.BuyerId == "" || params.SellerId == "" {
		return fmt.Errorf("%w: buyer and seller are required", ErrValidation)
	}
	if params.BuyerId == params.SellerId {
		return ErrSelfDealing
	}
	if params.Amount < s.minAmount {
		return fmt.Errorf("%w: %s is less than %s", ErrAmountTooSmall,
			FormatAmount(params.Amount, params.Currency), FormatAmount(s.minAmount, params.Currency))
	}
	if *params.FeePercent < 0 || *params.FeePercent > MaxFeePercent {
		return ErrInvalidFee
	}
	if n := utf8.RuneCountInString(params.Description); n == 0 || n > maxDescriptionLength {
		return ErrInvalidDescription
	}

	var milestoneTotal int64
	for _, m := range params.Milestones {
		if m.Amount <= 0 || strings.TrimSpace(m.Description) == "" {
			return ErrInvalidMilestones
		}
		milestoneTotal += m.Amount
	}
	if milestoneTotal > params.Amount {
		return ErrInvalidMilestones
	}
	return nil
}

// CreateDeal opens a deal in the created state with a held payment intent attached.
func (s *Service) CreateDeal(ctx context.Context, params CreateDealParams) (*models.Deal, error) {
	if err := s.validateCreate(&params); err != nil {
		return nil, err
	}

	buyer, err := s.store.FindUserById(ctx, params.BuyerId)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if buyer.Banned {
		return nil, ErrUserBanned
	}

	seller, err := s.store.FindUserById(ctx, params.SellerId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSellerNotOnboarded
		}
		return nil, err
	}
	if seller.Banned {
		return nil, ErrUserBanned
	}
	if !seller.CanReceiveTransfers() {
		return nil, ErrSellerNotOnboarded
	}

	dealId, err := s.allocateDealId(ctx)
	if err != nil {
		return nil, err
	}

	metadata := models.PaymentMetadata{
		Version:  models.PaymentMetadataVersion,
		DealId:   dealId,
		BuyerId:  params.BuyerId,
		SellerId: params.SellerId,
	}

	held, err := s.gateway.CreateHeldPayment(ctx, params.Amount, params.Currency, dealId, metadata)
	if err != nil {
		zap.L().Warn("Held payment creation failed, deal not persisted",
			zap.String("deal_id", dealId),
			zap.Error(err))
		return nil, &GatewayError{Op: "create held payment", Err: err}
	}

	now := s.now()
	deal := &models.Deal{
		Id:              dealId,
		BuyerId:         params.BuyerId,
		SellerId:        params.SellerId,
		Amount:          params.Amount,
		Currency:        params.Currency,
		Description:     params.Description,
		Status:          models.DealStatusCreated,
		PaymentIntentId: held.IntentId,
		FeePercent:      *params.FeePercent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, m := range params.Milestones {
		deal.Milestones = append(deal.Milestones, models.Milestone{
			Description: strings.TrimSpace(m.Description),
			Amount:      m.Amount,
			Status:      models.MilestonePending,
		})
	}

	if err := s.store.InsertDeal(ctx, deal); err != nil {
		// The intent expires on the gateway side if nobody pays it.
		zap.L().Error("Deal persistence failed after held payment was created, intent orphaned",
			zap.String("deal_id", dealId),
			zap.String("payment_intent_id", held.IntentId),
			zap.Error(err))
		if cancelErr := s.gateway.CancelPayment(ctx, held.IntentId); cancelErr != nil {
			zap.L().Warn("Failed to cancel orphaned payment intent",
				zap.String("payment_intent_id", held.IntentId),
				zap.Error(cancelErr))
		}
		return nil, fmt.Errorf("failed to persist deal: %w", mapStoreError(err))
	}

	s.bumpCounter(ctx, deal.BuyerId, models.CounterTotalDeals, 1)
	s.bumpCounter(ctx, deal.SellerId, models.CounterTotalDeals, 1)

	zap.L().Info("Deal created",
		zap.String("deal_id", deal.Id),
		zap.String("buyer_id", deal.BuyerId),
		zap.String("seller_id", deal.SellerId),
		zap.Int64("amount", deal.Amount),
		zap.String("currency", deal.Currency),
		zap.Int64("fee_percent", deal.FeePercent),
		zap.String("payment_intent_id", deal.PaymentIntentId))

	payload := dealPayload(deal)
	s.notifier.Notify(ctx, deal.SellerId, models.MessageDealCreated, payload)
	payload.PaymentLink = held.PaymentURL
	s.notifier.Notify(ctx, deal.BuyerId, models.MessagePaymentRequested, payload)
	return deal, nil
}

func (s *Service) allocateDealId(ctx context.Context) (string, error) {
	for attempt := 0; attempt < dealIdAttempts; attempt++ {
		id, err := s.newDealId()
		if err != nil {
			return "", err
		}
		_, err = s.store.FindDealById(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check deal id: %w", err)
		}
		zap.L().Debug("Deal id collision, retrying", zap.String("deal_id", id), zap.Int("attempt", attempt+1))
	}
	return "", fmt.Errorf("unable to allocate a unique deal id after %d attempts", dealIdAttempts)
}

// MarkPaid records that the buyer's payment for intentId succeeded. Replaying
// it for a deal that is already paid with the same intent is a no-op.
func (s *Service) MarkPaid(ctx context.Context, dealId, intentId string) (*models.Deal, error) {
	deal, err := s.findDeal(ctx, dealId)
	if err != nil {
		return nil, err
	}
	if deal.PaymentIntentId != intentId {
		zap.L().Warn("Payment intent does not match deal",
			zap.String("deal_id", dealId),
			zap.String("stored_intent", deal.PaymentIntentId),
			zap.String("event_intent", intentId))
		return nil, ErrIntentMismatch
	}

	switch deal.Status {
	case models.DealStatusPaid:
		zap.L().Info("Deal already paid, ignoring duplicate payment notification", eventFields(ctx, zap.String("deal_id", dealId))...)
		return deal, nil
	case models.DealStatusCreated:
	default:
		return nil, fmt.Errorf("%w: deal %s is %s", ErrPreconditionFailed, dealId, deal.Status)
	}

	err = s.transition(ctx, deal, models.DealStatusPaid, store.DealUpdate{})
	if errors.Is(err, ErrPreconditionFailed) {
		// Lost to a concurrent delivery of the same event?
		current, findErr := s.findDeal(ctx, dealId)
		if findErr == nil && current.Status == models.DealStatusPaid {
			return current, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deal marked as paid", eventFields(ctx,
		zap.String("deal_id", deal.Id),
		zap.String("payment_intent_id", intentId))...)

	payload := dealPayload(deal)
	s.notifier.Notify(ctx, deal.SellerId, models.MessageDealPaid, payload)
	s.notifier.Notify(ctx, deal.BuyerId, models.MessageDealPaid, payload)
	return deal, nil
}

// Release transfers the net amount to the seller and completes the deal.
// A failed transfer leaves the deal paid so the seller can retry.
func (s *Service) Release(ctx context.Context, dealId, callerId string) (*models.Deal, error) {
	deal, err := s.findDeal(ctx, dealId)
	if err != nil {
		return nil, err
	}
	if deal.SellerId != callerId || deal.Status != models.DealStatusPaid {
		return nil, fmt.Errorf("%w (deal %s is %s)", ErrInvalidSellerOrStatus, dealId, deal.Status)
	}

	seller, err := s.store.FindUserById(ctx, deal.SellerId)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !seller.CanReceiveTransfers() {
		return nil, ErrSellerNotOnboarded
	}

	fee := PlatformFee(deal.Amount, deal.FeePercent)
	net := deal.Amount - fee

	zap.L().Info("Releasing deal funds",
		zap.String("deal_id", deal.Id),
		zap.Int64("amount", deal.Amount),
		zap.Int64("fee", fee),
		zap.Int64("net_amount", net),
		zap.String("destination", seller.PaymentAccountId))

	transfer, err := s.gateway.CreateTransfer(ctx, net, deal.Currency, seller.PaymentAccountId, deal.Id, metadataFor(deal))
	if err != nil {
		zap.L().Error("Transfer failed, deal stays paid",
			zap.String("deal_id", deal.Id),
			zap.Error(err))
		return nil, &GatewayError{Op: "transfer", Err: err}
	}

	completedAt := s.now()
	err = s.transition(ctx, deal, models.DealStatusCompleted, store.DealUpdate{
		TransferId:  transfer.TransferId,
		CompletedAt: &completedAt,
	})
	if err != nil {
		zap.L().Error("Transfer succeeded but deal could not be completed",
			zap.String("deal_id", deal.Id),
			zap.String("transfer_id", transfer.TransferId),
			zap.Error(err))
		return nil, err
	}

	s.bumpCounter(ctx, deal.SellerId, models.CounterSuccessfulDeals, 1)
	s.bumpCounter(ctx, deal.SellerId, models.CounterTotalVolume, deal.Amount)

	zap.L().Info("Deal completed",
		zap.String("deal_id", deal.Id),
		zap.String("transfer_id", transfer.TransferId))

	payload := dealPayload(deal)
	s.notifier.Notify(ctx, deal.SellerId, models.MessageDealCompleted, payload)
	s.notifier.Notify(ctx, deal.BuyerId, models.MessageDealCompleted, payload)
	return deal, nil
}

// Dispute freezes a paid deal for manual resolution.
func (s *Service) Dispute(ctx context.Context, dealId, callerId, reason string) (*models.Deal, error) {
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n == 0 || n > maxReasonLength {
		return nil, ErrInvalidReason
	}

	deal, err := s.findDeal(ctx, dealId)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(callerId) {
		return nil, ErrNotParticipant
	}
	if !disputableStatuses[deal.Status] {
		return nil, fmt.Errorf("%w: deal %s is %s", ErrPreconditionFailed, dealId, deal.Status)
	}

	disputedAt := s.now()
	err = s.transition(ctx, deal, models.DealStatusDisputed, store.DealUpdate{
		DisputeReason:    reason,
		DisputeInitiator: callerId,
		DisputedAt:       &disputedAt,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Deal disputed",
		zap.String("deal_id", deal.Id),
		zap.String("initiator", callerId),
		zap.String("reason", reason))

	payload := dealPayload(deal)
	s.notifier.Notify(ctx, deal.Counterparty(callerId), models.MessageDealDisputed, payload)
	s.notifier.Notify(ctx, callerId, models.MessageDealDisputed, payload)
	return deal, nil
}

// Cancel closes an unpaid deal.
func (s *Service) Cancel(ctx context.Context, dealId, callerId string) (*models.Deal, error) {
	deal, err := s.findDeal(ctx, dealId)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(callerId) {
		return nil, ErrNotParticipant
	}
	if deal.Status != models.DealStatusCreated {
		return nil, fmt.Errorf("%w: only unpaid deals can be cancelled (deal %s is %s)", ErrPreconditionFailed, dealId, deal.Status)
	}

	if err := s.cancelDeal(ctx, deal, callerId); err != nil {
		return nil, err
	}
	return deal, nil
}

// cancelDeal voids the payment intent and only then moves the deal to
// cancelled. A deal whose buyer already paid stays in created so the
// pending payment webhook can still mark it paid.
func (s *Service) cancelDeal(ctx context.Context, deal *models.Deal, actor string) error {
	if err := s.gateway.CancelPayment(ctx, deal.PaymentIntentId); err != nil {
		switch {
		case errors.Is(err, ErrPaymentAlreadyCancelled):
			zap.L().Info("Payment intent already cancelled",
				zap.String("deal_id", deal.Id),
				zap.String("payment_intent_id", deal.PaymentIntentId))
		case errors.Is(err, ErrPaymentAlreadySucceeded):
			zap.L().Warn("Refusing to cancel deal with a received payment",
				zap.String("deal_id", deal.Id),
				zap.String("payment_intent_id", deal.PaymentIntentId),
				zap.String("actor", actor))
			return fmt.Errorf("%w: deal %s", ErrPaymentReceived, deal.Id)
		default:
			return &GatewayError{Op: "cancel payment", Err: err}
		}
	}

	cancelledAt := s.now()
	if err := s.transition(ctx, deal, models.DealStatusCancelled, store.DealUpdate{CancelledAt: &cancelledAt}); err != nil {
		return err
	}

	zap.L().Info("Deal cancelled",
		zap.String("deal_id", deal.Id),
		zap.String("actor", actor))

	payload := dealPayload(deal)
	s.notifier.Notify(ctx, deal.BuyerId, models.MessageDealCancelled, payload)
	s.notifier.Notify(ctx, deal.SellerId, models.MessageDealCancelled, payload)
	return nil
}

// ExpireStale cancels deals that stayed unpaid longer than olderThan and
// returns how many were cancelled.
func (s *Service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := s.now().Add(-olderThan)
	deals, err := s.store.ListStaleDeals(ctx, models.DealStatusCreated, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale deals: %w", err)
	}

	expired := 0
	for i := range deals {
		deal := &deals[i]
		if err := s.cancelDeal(ctx, deal, systemActor); err != nil {
			if errors.Is(err, ErrPreconditionFailed) {
				zap.L().Debug("Stale deal changed before expiry, skipping", zap.String("deal_id", deal.Id))
				continue
			}
			if errors.Is(err, ErrGateway) {
				zap.L().Warn("Failed to expire deal, will retry next pass",
					zap.String("deal_id", deal.Id),
					zap.Error(err))
				continue
			}
			return expired, err
		}
		expired++
	}

	if expired > 0 {
		zap.L().Info("Expired unpaid deals", zap.Int("count", expired), zap.Time("cutoff", cutoff))
	}
	return expired, nil
}

// GetDeal returns a deal to one of its participants.
func (s *Service) GetDeal(ctx context.Context, dealId, callerId string) (*models.Deal, error) {
	deal, err := s.findDeal(ctx, dealId)
	if err != nil {
		return nil, err
	}
	if !deal.IsParticipant(callerId) {
		return nil, fmt.Errorf("%w: deal %s", ErrNotFound, dealId)
	}
	return deal, nil
}

// LookupDeal returns a deal without a participant check, for operators.
func (s *Service) LookupDeal(ctx context.Context, dealId string) (*models.Deal, error) {
	return s.findDeal(ctx, dealId)
}

// ListDeals returns the most recent deals the user takes part in.
func (s *Service) ListDeals(ctx context.Context, userId string, limit int) ([]models.Deal, error) {
	if limit <= 0 {
		limit = 10
	}
	deals, err := s.store.ListDealsForUser(ctx, userId, limit)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return deals, nil
}

// FindDealByIntent resolves the deal a gateway payment intent belongs to.
func (s *Service) FindDealByIntent(ctx context.Context, intentId string) (*models.Deal, error) {
	deal, err := s.store.FindDealByIntent(ctx, intentId)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return deal, nil
}

// StartOnboarding creates a payout account for the user when needed and
// returns the gateway link where they finish onboarding.
func (s *Service) StartOnboarding(ctx context.Context, userId string) (string, error) {
	if s.onboarder == nil {
		return "", fmt.Errorf("onboarding is not configured")
	}

	user, err := s.store.FindUserById(ctx, userId)
	if err != nil {
		return "", mapStoreError(err)
	}
	if user.PaymentAccountStatus == models.PaymentAccountActive {
		return "", fmt.Errorf("%w: payment account already active", ErrPreconditionFailed)
	}

	accountId := user.PaymentAccountId
	if accountId == "" {
		account, err := s.onboarder.CreateConnectedAccount(ctx, userId)
		if err != nil {
			return "", &GatewayError{Op: "create connected account", Err: err}
		}
		accountId = account.AccountId
		if err := s.store.SetPaymentAccount(ctx, userId, accountId, models.PaymentAccountPending); err != nil {
			return "", mapStoreError(err)
		}
	}

	link, err := s.onboarder.CreateOnboardingLink(ctx, accountId)
	if err != nil {
		return "", &GatewayError{Op: "create onboarding link", Err: err}
	}

	zap.L().Info("Onboarding link issued",
		zap.String("user_id", userId),
		zap.String("account_id", accountId))
	return link, nil
}

// UpdatePaymentAccountStatus applies a gateway-reported account status change.
func (s *Service) UpdatePaymentAccountStatus(ctx context.Context, accountId string, status models.PaymentAccountStatus) error {
	user, err := s.store.FindUserByPaymentAccount(ctx, accountId)
	if err != nil {
		return mapStoreError(err)
	}
	if user.PaymentAccountStatus == status {
		return nil
	}

	if err := s.store.SetPaymentAccount(ctx, user.Id, accountId, status); err != nil {
		return mapStoreError(err)
	}

	s.notifier.Notify(ctx, user.Id, models.MessageAccountUpdated, models.NotificationPayload{Status: string(status)})
	return nil
}

// transition is the single place a deal status is written.
func (s *Service) transition(ctx context.Context, deal *models.Deal, next models.DealStatus, update store.DealUpdate) error {
	if !CanTransition(deal.Status, next) {
		return fmt.Errorf("%w: %s -> %s is not allowed", ErrPreconditionFailed, deal.Status, next)
	}

	if err := s.store.ConditionalUpdateDealStatus(ctx, deal.Id, deal.Status, next, update); err != nil {
		return mapStoreError(err)
	}

	deal.Status = next
	deal.UpdatedAt = s.now()
	if update.TransferId != "" {
		deal.TransferId = update.TransferId
	}
	if update.DisputeReason != "" {
		deal.DisputeReason = update.DisputeReason
		deal.DisputeInitiator = update.DisputeInitiator
		deal.DisputedAt = update.DisputedAt
	}
	if update.CompletedAt != nil {
		deal.CompletedAt = update.CompletedAt
	}
	if update.CancelledAt != nil {
		deal.CancelledAt = update.CancelledAt
	}
	if update.RefundedAt != nil {
		deal.RefundedAt = update.RefundedAt
	}
	return nil
}

func (s *Service) findDeal(ctx context.Context, dealId string) (*models.Deal, error) {
	deal, err := s.store.FindDealById(ctx, dealId)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return deal, nil
}

func (s *Service) bumpCounter(ctx context.Context, userId string, counter models.UserCounter, delta int64) {
	if err := s.store.IncrementUserCounter(ctx, userId, counter, delta); err != nil {
		zap.L().Warn("Failed to update user counter",
			zap.String("user_id", userId),
			zap.String("counter", string(counter)),
			zap.Error(err))
	}
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrPreconditionFailed):
		return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
	}
	return err
}

func metadataFor(deal *models.Deal) models.PaymentMetadata {
	return models.PaymentMetadata{
		Version:  models.PaymentMetadataVersion,
		DealId:   deal.Id,
		BuyerId:  deal.BuyerId,
		SellerId: deal.SellerId,
	}
}

func dealPayload(deal *models.Deal) models.NotificationPayload {
	fee := PlatformFee(deal.Amount, deal.FeePercent)
	return models.NotificationPayload{
		DealId:      deal.Id,
		Amount:      FormatAmount(deal.Amount, deal.Currency),
		NetAmount:   FormatAmount(deal.Amount-fee, deal.Currency),
		Fee:         FormatAmount(fee, deal.Currency),
		Description: deal.Description,
		Reason:      deal.DisputeReason,
		Initiator:   deal.DisputeInitiator,
		Status:      string(deal.Status),
	}
}

func eventFields(ctx context.Context, fields ...zap.Field) []zap.Field {
	if ec := models.GetEventContext(ctx); ec != nil {
		fields = append(fields, zap.String("event_id", ec.EventId), zap.String("event_type", ec.RawType))
	}
	return fields
}

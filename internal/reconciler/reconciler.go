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

package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

// EventVerifier authenticates a raw gateway delivery and translates it.
type EventVerifier interface {
	VerifyEventSignature(payload []byte, signature string) (*models.GatewayEvent, error)
}

// DealMachine is the subset of escrow.Service the reconciler drives.
type DealMachine interface {
	FindDealByIntent(ctx context.Context, intentId string) (*models.Deal, error)
	MarkPaid(ctx context.Context, dealId, intentId string) (*models.Deal, error)
	UpdatePaymentAccountStatus(ctx context.Context, accountId string, status models.PaymentAccountStatus) error
}

// EventLog remembers which gateway events were already handled.
type EventLog interface {
	HasProcessedEvent(ctx context.Context, eventId string) (bool, error)
	RecordProcessedEvent(ctx context.Context, eventId, kind string) error
}

// ReconcilerConfig contains configuration for Reconciler
type ReconcilerConfig struct {
	Verifier      EventVerifier
	Deals         DealMachine
	Events        EventLog
	Notifier      escrow.Notifier
	EventCacheTTL time.Duration
}

// Reconciler applies asynchronous payment gateway events to deals.
// Deliveries may be duplicated and arrive in any order.
type Reconciler struct {
	verifier EventVerifier
	deals    DealMachine
	events   EventLog
	notifier escrow.Notifier

	recent *ttlcache.Cache[string, models.EventKind]
}

// NewReconciler creates a new webhook reconciler
func NewReconciler(cfg ReconcilerConfig) *Reconciler {
	ttl := cfg.EventCacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Reconciler{
		verifier: cfg.Verifier,
		deals:    cfg.Deals,
		events:   cfg.Events,
		notifier: cfg.Notifier,
		recent: ttlcache.New[string, models.EventKind](
			ttlcache.WithTTL[string, models.EventKind](ttl),
			ttlcache.WithDisableTouchOnHit[string, models.EventKind]()),
	}
}

// Start runs the recent-event cache expiry loop until Stop is called.
func (r *Reconciler) Start() {
	r.recent.Start()
}

// Stop halts the cache expiry loop.
func (r *Reconciler) Stop() {
	r.recent.Stop()
}

// HandleWebhook verifies and applies one gateway delivery. It returns
// escrow.ErrInvalidSignature for unauthenticated payloads and a non-nil error
// only when the gateway should retry; everything else is acknowledged.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := r.verifier.VerifyEventSignature(payload, signature)
	if err != nil {
		zap.L().Warn("Rejected webhook with invalid signature", zap.Error(err))
		return fmt.Errorf("%w: %w", escrow.ErrInvalidSignature, err)
	}

	if r.alreadyProcessed(ctx, event.Id) {
		zap.L().Debug("Skipping already processed event",
			zap.String("event_id", event.Id),
			zap.String("event_type", event.RawType))
		return nil
	}

	ctx = models.WithEventContext(ctx, &models.EventContext{EventId: event.Id, RawType: event.RawType})

	if err := r.apply(ctx, event); err != nil {
		return err
	}

	r.markProcessed(ctx, event)
	return nil
}

func (r *Reconciler) apply(ctx context.Context, event *models.GatewayEvent) error {
	switch event.Kind {
	case models.EventPaymentSucceeded:
		return r.handlePaymentSucceeded(ctx, event)
	case models.EventPaymentFailed:
		return r.handlePaymentFailed(ctx, event)
	case models.EventAccountUpdated:
		return r.handleAccountUpdated(ctx, event)
	default:
		zap.L().Info("Ignoring unhandled event type",
			zap.String("event_id", event.Id),
			zap.String("event_type", event.RawType))
		return nil
	}
}

func (r *Reconciler) handlePaymentSucceeded(ctx context.Context, event *models.GatewayEvent) error {
	deal, err := r.deals.FindDealByIntent(ctx, event.IntentId)
	if err != nil {
		return r.acknowledgeOrRetry(event, "find deal for payment", err)
	}

	if _, err := r.deals.MarkPaid(ctx, deal.Id, event.IntentId); err != nil {
		return r.acknowledgeOrRetry(event, "mark deal paid", err)
	}
	return nil
}

func (r *Reconciler) handlePaymentFailed(ctx context.Context, event *models.GatewayEvent) error {
	deal, err := r.deals.FindDealByIntent(ctx, event.IntentId)
	if err != nil {
		return r.acknowledgeOrRetry(event, "find deal for failed payment", err)
	}

	zap.L().Info("Payment failed for deal",
		zap.String("event_id", event.Id),
		zap.String("deal_id", deal.Id),
		zap.String("reason", event.FailureReason))

	if r.notifier != nil {
		r.notifier.Notify(ctx, deal.BuyerId, models.MessagePaymentFailed, models.NotificationPayload{
			DealId:      deal.Id,
			Amount:      escrow.FormatAmount(deal.Amount, deal.Currency),
			Description: deal.Description,
			Reason:      event.FailureReason,
			Status:      string(deal.Status),
		})
	}
	return nil
}

func (r *Reconciler) handleAccountUpdated(ctx context.Context, event *models.GatewayEvent) error {
	if event.AccountId == "" || event.AccountStatus == "" {
		zap.L().Warn("Account event without account data", zap.String("event_id", event.Id))
		return nil
	}

	if err := r.deals.UpdatePaymentAccountStatus(ctx, event.AccountId, event.AccountStatus); err != nil {
		return r.acknowledgeOrRetry(event, "update payment account", err)
	}
	return nil
}

// acknowledgeOrRetry decides whether a failed step should be retried by the gateway.
// Missing records and state conflicts will not fix themselves on redelivery.
func (r *Reconciler) acknowledgeOrRetry(event *models.GatewayEvent, op string, err error) error {
	fields := []zap.Field{
		zap.String("event_id", event.Id),
		zap.String("event_type", event.RawType),
		zap.String("intent_id", event.IntentId),
		zap.String("metadata_deal_id", event.Metadata.DealId),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, escrow.ErrNotFound):
		zap.L().Info("Event references unknown record, acknowledging", append(fields, zap.String("op", op))...)
		return nil
	case errors.Is(err, escrow.ErrPreconditionFailed), errors.Is(err, escrow.ErrValidation):
		zap.L().Warn("Event conflicts with deal state, acknowledging", append(fields, zap.String("op", op))...)
		return nil
	}

	zap.L().Error("Failed to apply event, gateway will retry", append(fields, zap.String("op", op))...)
	return fmt.Errorf("failed to %s: %w", op, err)
}

func (r *Reconciler) alreadyProcessed(ctx context.Context, eventId string) bool {
	if r.recent.Get(eventId) != nil {
		return true
	}
	if r.events == nil {
		return false
	}

	processed, err := r.events.HasProcessedEvent(ctx, eventId)
	if err != nil {
		// Fall through and reprocess; MarkPaid is idempotent.
		zap.L().Warn("Failed to check processed events", zap.String("event_id", eventId), zap.Error(err))
		return false
	}
	if processed {
		r.recent.Set(eventId, models.EventUnknown, ttlcache.DefaultTTL)
	}
	return processed
}

func (r *Reconciler) markProcessed(ctx context.Context, event *models.GatewayEvent) {
	r.recent.Set(event.Id, event.Kind, ttlcache.DefaultTTL)
	if r.events == nil {
		return
	}
	if err := r.events.RecordProcessedEvent(ctx, event.Id, event.RawType); err != nil {
		zap.L().Warn("Failed to record processed event",
			zap.String("event_id", event.Id),
			zap.Error(err))
	}
}

package stripe

import (
	"encoding/json"
	"fmt"
	"strconv"

	"escrow-bot-go/internal/models"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	eventPaymentIntentSucceeded = "payment_intent.succeeded"
	eventPaymentIntentFailed    = "payment_intent.payment_failed"
	eventAccountUpdated         = "account.updated"
)

// VerifyEventSignature checks the Stripe-Signature header against the
// endpoint secret and translates the event.
func (s *Service) VerifyEventSignature(payload []byte, signature string) (*models.GatewayEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to verify webhook: %w", err)
	}
	return translateEvent(event), nil
}

// translateEvent maps a verified Stripe event onto a GatewayEvent. An object
// that cannot be decoded yields EventUnknown so the delivery is acknowledged
// instead of retried.
func translateEvent(event stripego.Event) *models.GatewayEvent {
	result := &models.GatewayEvent{
		Id:      event.ID,
		Kind:    models.EventUnknown,
		RawType: string(event.Type),
	}
	if event.Data == nil {
		return result
	}

	switch string(event.Type) {
	case eventPaymentIntentSucceeded, eventPaymentIntentFailed:
		var intent stripego.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			logUndecodable(event, err)
			return result
		}
		result.IntentId = intent.ID
		result.Metadata = metadataFrom(intent.Metadata)
		if string(event.Type) == eventPaymentIntentSucceeded {
			result.Kind = models.EventPaymentSucceeded
		} else {
			result.Kind = models.EventPaymentFailed
			if intent.LastPaymentError != nil {
				result.FailureReason = intent.LastPaymentError.Msg
				if result.FailureReason == "" {
					result.FailureReason = string(intent.LastPaymentError.Code)
				}
			}
		}

	case eventAccountUpdated:
		var account stripego.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			logUndecodable(event, err)
			return result
		}
		result.Kind = models.EventAccountUpdated
		result.AccountId = account.ID
		result.AccountStatus = accountStatus(&account)
	}

	return result
}

func logUndecodable(event stripego.Event, err error) {
	zap.L().Error("Unable to decode event object, acknowledging as unknown",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Error(err))
}

func metadataFrom(md map[string]string) models.PaymentMetadata {
	version, _ := strconv.Atoi(md[metadataVersionKey])
	return models.PaymentMetadata{
		Version:  version,
		DealId:   md[metadataDealKey],
		BuyerId:  md[metadataBuyerKey],
		SellerId: md[metadataSellerKey],
	}
}

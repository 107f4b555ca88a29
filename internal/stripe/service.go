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

package stripe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"escrow-bot-go/internal/escrow"
	"escrow-bot-go/internal/models"

	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

const (
	metadataVersionKey = "metadata_version"
	metadataDealKey    = "deal_id"
	metadataBuyerKey   = "buyer_id"
	metadataSellerKey  = "seller_id"
	metadataUserKey    = "user_id"
)

// Service is the Stripe Connect implementation of the payment gateway.
// Funds are charged to the platform and later moved to the seller's
// connected account with a transfer in the same transfer group.
type Service struct {
	api           *client.API
	webhookSecret string
	refreshURL    string
	returnURL     string
	paymentPage   string
}

func NewService(cfg models.StripeConfig) (*Service, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key cannot be empty")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret cannot be empty")
	}

	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	backends := stripego.NewBackendsWithConfig(&stripego.BackendConfig{
		HTTPClient: httpClient,
	})

	api := &client.API{}
	api.Init(cfg.SecretKey, backends)

	return &Service{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		refreshURL:    cfg.RefreshURL,
		returnURL:     cfg.ReturnURL,
		paymentPage:   cfg.PaymentPage,
	}, nil
}

func createCustomHttpClient() (*http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

func intentIdempotencyKey(dealId string) string {
	return "deal-" + dealId + "-intent"
}

func transferIdempotencyKey(dealId string) string {
	return "deal-" + dealId + "-transfer"
}

func applyMetadata(params *stripego.Params, metadata models.PaymentMetadata) {
	params.AddMetadata(metadataVersionKey, strconv.Itoa(metadata.Version))
	params.AddMetadata(metadataDealKey, metadata.DealId)
	params.AddMetadata(metadataBuyerKey, metadata.BuyerId)
	params.AddMetadata(metadataSellerKey, metadata.SellerId)
}

// CreateHeldPayment creates the buyer's payment intent. correlationId is the deal id.
func (s *Service) CreateHeldPayment(ctx context.Context, amount int64, currency, correlationId string, metadata models.PaymentMetadata) (*models.HeldPayment, error) {
	params := &stripego.PaymentIntentParams{
		Amount:        stripego.Int64(amount),
		Currency:      stripego.String(currency),
		TransferGroup: stripego.String(correlationId),
		Description:   stripego.String("Escrow deal " + correlationId),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(intentIdempotencyKey(correlationId))
	applyMetadata(&params.Params, metadata)

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("unable to create payment intent: %w", err)
	}

	zap.L().Info("Payment intent created",
		zap.String("deal_id", correlationId),
		zap.String("payment_intent_id", intent.ID),
		zap.Int64("amount", amount),
		zap.String("currency", currency))

	return &models.HeldPayment{
		IntentId:     intent.ID,
		ClientSecret: intent.ClientSecret,
		PaymentURL:   paymentURL(s.paymentPage, intent.ID, intent.ClientSecret),
		Status:       string(intent.Status),
	}, nil
}

// paymentURL points the buyer at the operator's payment page with the query
// parameters Stripe.js expects to confirm the intent.
func paymentURL(page, intentId, clientSecret string) string {
	if page == "" || clientSecret == "" {
		return ""
	}
	u, err := url.Parse(page)
	if err != nil {
		zap.L().Warn("Invalid payment page URL", zap.String("payment_page", page), zap.Error(err))
		return ""
	}
	q := u.Query()
	q.Set("payment_intent", intentId)
	q.Set("payment_intent_client_secret", clientSecret)
	u.RawQuery = q.Encode()
	return u.String()
}

// CreateTransfer moves funds from the platform balance to a connected account.
func (s *Service) CreateTransfer(ctx context.Context, amount int64, currency, destinationAccount, correlationId string, metadata models.PaymentMetadata) (*models.Transfer, error) {
	params := &stripego.TransferParams{
		Amount:        stripego.Int64(amount),
		Currency:      stripego.String(currency),
		Destination:   stripego.String(destinationAccount),
		TransferGroup: stripego.String(correlationId),
	}
	params.Context = ctx
	params.SetIdempotencyKey(transferIdempotencyKey(correlationId))
	applyMetadata(&params.Params, metadata)

	transfer, err := s.api.Transfers.New(params)
	if err != nil {
		return nil, fmt.Errorf("unable to create transfer: %w", err)
	}

	zap.L().Info("Transfer created",
		zap.String("deal_id", correlationId),
		zap.String("transfer_id", transfer.ID),
		zap.String("destination", destinationAccount),
		zap.Int64("amount", amount))

	return &models.Transfer{
		TransferId:  transfer.ID,
		Amount:      transfer.Amount,
		Currency:    string(transfer.Currency),
		Destination: destinationAccount,
	}, nil
}

// CancelPayment voids an unpaid payment intent.
func (s *Service) CancelPayment(ctx context.Context, intentId string) error {
	params := &stripego.PaymentIntentCancelParams{
		CancellationReason: stripego.String(string(stripego.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	if _, err := s.api.PaymentIntents.Cancel(intentId, params); err != nil {
		return cancelOutcome(intentId, err)
	}
	return nil
}

// cancelOutcome classifies a refused cancellation by the intent state Stripe
// reports alongside the error.
func cancelOutcome(intentId string, err error) error {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) && stripeErr.PaymentIntent != nil {
		switch stripeErr.PaymentIntent.Status {
		case stripego.PaymentIntentStatusCanceled:
			return fmt.Errorf("payment intent %s: %w", intentId, escrow.ErrPaymentAlreadyCancelled)
		case stripego.PaymentIntentStatusSucceeded, stripego.PaymentIntentStatusProcessing:
			return fmt.Errorf("payment intent %s: %w", intentId, escrow.ErrPaymentAlreadySucceeded)
		}
	}
	return fmt.Errorf("unable to cancel payment intent %s: %w", intentId, err)
}

// CreateConnectedAccount opens an Express account able to receive transfers.
func (s *Service) CreateConnectedAccount(ctx context.Context, userId string) (*models.ConnectedAccount, error) {
	params := &stripego.AccountParams{
		Type: stripego.String(string(stripego.AccountTypeExpress)),
		Capabilities: &stripego.AccountCapabilitiesParams{
			Transfers: &stripego.AccountCapabilitiesTransfersParams{
				Requested: stripego.Bool(true),
			},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("user-" + userId + "-account")
	params.AddMetadata(metadataUserKey, userId)

	account, err := s.api.Accounts.New(params)
	if err != nil {
		return nil, fmt.Errorf("unable to create connected account: %w", err)
	}

	zap.L().Info("Connected account created",
		zap.String("user_id", userId),
		zap.String("account_id", account.ID))

	return &models.ConnectedAccount{
		AccountId: account.ID,
		Status:    accountStatus(account),
	}, nil
}

// CreateOnboardingLink returns a single-use hosted onboarding URL.
func (s *Service) CreateOnboardingLink(ctx context.Context, accountId string) (string, error) {
	params := &stripego.AccountLinkParams{
		Account:    stripego.String(accountId),
		RefreshURL: stripego.String(s.refreshURL),
		ReturnURL:  stripego.String(s.returnURL),
		Type:       stripego.String(string(stripego.AccountLinkTypeAccountOnboarding)),
	}
	params.Context = ctx

	link, err := s.api.AccountLinks.New(params)
	if err != nil {
		return "", fmt.Errorf("unable to create account link: %w", err)
	}
	return link.URL, nil
}

func accountStatus(account *stripego.Account) models.PaymentAccountStatus {
	if account.ChargesEnabled && account.PayoutsEnabled {
		return models.PaymentAccountActive
	}
	if account.Requirements != nil && account.Requirements.DisabledReason != "" && account.DetailsSubmitted {
		return models.PaymentAccountRestricted
	}
	return models.PaymentAccountPending
}

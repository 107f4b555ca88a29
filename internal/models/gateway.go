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

package models

// PaymentMetadataVersion is bumped whenever PaymentMetadata gains or loses fields
const PaymentMetadataVersion = 1

// PaymentMetadata is the fixed correlation record attached to every gateway object
type PaymentMetadata struct {
	Version  int
	DealId   string
	BuyerId  string
	SellerId string
}

// HeldPayment is a gateway payment intent charged to the platform balance.
// PaymentURL is where the buyer completes it; empty when no payment page is configured.
type HeldPayment struct {
	IntentId     string
	ClientSecret string
	PaymentURL   string
	Status       string
}

// Transfer is a gateway movement of funds to a connected account
type Transfer struct {
	TransferId  string
	Amount      int64
	Currency    string
	Destination string
}

// ConnectedAccount is a gateway payout account owned by a user
type ConnectedAccount struct {
	AccountId string
	Status    PaymentAccountStatus
}

// EventKind is the normalized kind of an asynchronous gateway event
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment_succeeded"
	EventPaymentFailed    EventKind = "payment_failed"
	EventAccountUpdated   EventKind = "account_updated"
	EventUnknown          EventKind = "unknown"
)

// GatewayEvent is a verified gateway notification, translated to the fields the reconciler needs
type GatewayEvent struct {
	Id            string
	Kind          EventKind
	RawType       string
	IntentId      string
	AccountId     string
	AccountStatus PaymentAccountStatus
	FailureReason string
	Metadata      PaymentMetadata
}

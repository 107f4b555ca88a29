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

const (
	// User queries
	queryInsertUserIfMissing = `
		INSERT OR IGNORE INTO users (id, display_name) VALUES (?, ?)`

	queryGetUserById = `
		SELECT id, display_name, payment_account_id, payment_account_status,
		       total_deals, successful_deals, total_volume, active, banned, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryGetUserByPaymentAccount = `
		SELECT id, display_name, payment_account_id, payment_account_status,
		       total_deals, successful_deals, total_volume, active, banned, created_at, updated_at
		FROM users
		WHERE payment_account_id = ?`

	queryUpdatePaymentAccount = `
		UPDATE users
		SET payment_account_id = ?, payment_account_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Counter column names are whitelisted in IncrementUserCounter.
	queryIncrementUserCounterFmt = `
		UPDATE users
		SET %[1]s = %[1]s + ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Deal queries
	queryInsertDeal = `
		INSERT INTO deals (
			id, buyer_id, seller_id, amount, currency, description, status,
			payment_intent_id, fee_percent, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertMilestone = `
		INSERT INTO milestones (id, deal_id, position, description, amount, status)
		VALUES (?, ?, ?, ?, ?, ?)`

	dealColumns = `
		id, buyer_id, seller_id, amount, currency, description, status,
		payment_intent_id, transfer_id, fee_percent, dispute_reason, dispute_initiator,
		disputed_at, completed_at, cancelled_at, refunded_at, created_at, updated_at`

	queryGetDealById = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE id = ?`

	queryGetDealByIntent = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE payment_intent_id = ?`

	queryListDealsForUser = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE buyer_id = ? OR seller_id = ?
		ORDER BY created_at DESC
		LIMIT ?`

	queryListStaleDeals = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE status = ? AND created_at < ?
		ORDER BY created_at
		LIMIT ?`

	queryGetMilestones = `
		SELECT id, deal_id, position, description, amount, status
		FROM milestones
		WHERE deal_id = ?
		ORDER BY position`

	// Guarded by "AND status = ?": the row only changes if nobody else moved it first.
	queryConditionalUpdateDeal = `
		UPDATE deals
		SET status = ?,
		    transfer_id = COALESCE(NULLIF(?, ''), transfer_id),
		    dispute_reason = COALESCE(NULLIF(?, ''), dispute_reason),
		    dispute_initiator = COALESCE(NULLIF(?, ''), dispute_initiator),
		    disputed_at = COALESCE(?, disputed_at),
		    completed_at = COALESCE(?, completed_at),
		    cancelled_at = COALESCE(?, cancelled_at),
		    refunded_at = COALESCE(?, refunded_at),
		    updated_at = ?
		WHERE id = ? AND status = ?`

	queryDealExists = `
		SELECT 1 FROM deals WHERE id = ?`

	// Webhook event queries
	queryGetProcessedEvent = `
		SELECT id FROM processed_events WHERE event_id = ? LIMIT 1`

	queryInsertProcessedEvent = `
		INSERT OR IGNORE INTO processed_events (id, event_id, kind, received_at)
		VALUES (?, ?, ?, ?)`
)

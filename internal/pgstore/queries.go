package pgstore

const (
	userColumns = `
		id, display_name, payment_account_id, payment_account_status,
		total_deals, successful_deals, total_volume, active, banned, created_at, updated_at`

	queryInsertUserIfMissing = `
		INSERT INTO users (id, display_name) VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING`

	queryGetUserById = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	queryGetUserByPaymentAccount = `SELECT ` + userColumns + ` FROM users WHERE payment_account_id = $1`

	queryUpdatePaymentAccount = `
		UPDATE users
		SET payment_account_id = $1, payment_account_status = $2, updated_at = now()
		WHERE id = $3`

	queryIncrementUserCounterFmt = `
		UPDATE users
		SET %[1]s = %[1]s + $1, updated_at = now()
		WHERE id = $2`

	queryInsertDeal = `
		INSERT INTO deals (
			id, buyer_id, seller_id, amount, currency, description, status,
			payment_intent_id, fee_percent, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	queryInsertMilestone = `
		INSERT INTO milestones (id, deal_id, position, description, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	dealColumns = `
		id, buyer_id, seller_id, amount, currency, description, status,
		payment_intent_id, transfer_id, fee_percent, dispute_reason, dispute_initiator,
		disputed_at, completed_at, cancelled_at, refunded_at, created_at, updated_at`

	queryGetDealById = `SELECT ` + dealColumns + ` FROM deals WHERE id = $1`

	queryGetDealByIntent = `SELECT ` + dealColumns + ` FROM deals WHERE payment_intent_id = $1`

	queryListDealsForUser = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE buyer_id = $1 OR seller_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	queryListStaleDeals = `
		SELECT ` + dealColumns + `
		FROM deals
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`

	queryGetMilestones = `
		SELECT id, deal_id, position, description, amount, status
		FROM milestones
		WHERE deal_id = $1
		ORDER BY position`

	queryConditionalUpdateDeal = `
		UPDATE deals
		SET status = $1,
		    transfer_id = COALESCE(NULLIF($2, ''), transfer_id),
		    dispute_reason = COALESCE(NULLIF($3, ''), dispute_reason),
		    dispute_initiator = COALESCE(NULLIF($4, ''), dispute_initiator),
		    disputed_at = COALESCE($5, disputed_at),
		    completed_at = COALESCE($6, completed_at),
		    cancelled_at = COALESCE($7, cancelled_at),
		    refunded_at = COALESCE($8, refunded_at),
		    updated_at = now()
		WHERE id = $9 AND status = $10`

	queryDealExists = `SELECT EXISTS (SELECT 1 FROM deals WHERE id = $1)`

	queryGetProcessedEvent = `SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)`

	queryInsertProcessedEvent = `
		INSERT INTO processed_events (id, event_id, kind, received_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (event_id) DO NOTHING`
)

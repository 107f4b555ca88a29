package models

import "time"

// PaymentAccountStatus is the onboarding state of a user's payout account
type PaymentAccountStatus string

const (
	PaymentAccountNone       PaymentAccountStatus = "none"
	PaymentAccountPending    PaymentAccountStatus = "pending"
	PaymentAccountActive     PaymentAccountStatus = "active"
	PaymentAccountRestricted PaymentAccountStatus = "restricted"
)

// DealStatus is the lifecycle state of a deal
type DealStatus string

const (
	DealStatusCreated   DealStatus = "created"
	DealStatusPaid      DealStatus = "paid"
	DealStatusCompleted DealStatus = "completed"
	DealStatusDisputed  DealStatus = "disputed"
	DealStatusCancelled DealStatus = "cancelled"
	DealStatusRefunded  DealStatus = "refunded"
)

// IsTerminal reports whether no automated transition leaves this status.
func (s DealStatus) IsTerminal() bool {
	switch s {
	case DealStatusCompleted, DealStatusCancelled, DealStatusRefunded:
		return true
	}
	return false
}

// UserCounter names a lifetime counter column on the users table
type UserCounter string

const (
	CounterTotalDeals      UserCounter = "total_deals"
	CounterSuccessfulDeals UserCounter = "successful_deals"
	CounterTotalVolume     UserCounter = "total_volume"
)

// User represents a chat participant
type User struct {
	Id                   string               `db:"id"`
	DisplayName          string               `db:"display_name"`
	PaymentAccountId     string               `db:"payment_account_id"`
	PaymentAccountStatus PaymentAccountStatus `db:"payment_account_status"`
	TotalDeals           int64                `db:"total_deals"`
	SuccessfulDeals      int64                `db:"successful_deals"`
	TotalVolume          int64                `db:"total_volume"`
	Active               bool                 `db:"active"`
	Banned               bool                 `db:"banned"`
	CreatedAt            time.Time            `db:"created_at"`
	UpdatedAt            time.Time            `db:"updated_at"`
}

// CanReceiveTransfers reports whether funds may be sent to this user
func (u *User) CanReceiveTransfers() bool {
	return u.PaymentAccountStatus == PaymentAccountActive && u.PaymentAccountId != ""
}

// MilestoneStatus is the state of a single milestone
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "pending"
	MilestoneCompleted MilestoneStatus = "completed"
)

// Milestone is an informational slice of a deal; milestones are never settled on their own
type Milestone struct {
	Id          string          `db:"id"`
	DealId      string          `db:"deal_id"`
	Position    int             `db:"position"`
	Description string          `db:"description"`
	Amount      int64           `db:"amount"`
	Status      MilestoneStatus `db:"status"`
}

// Deal represents an escrow agreement between a buyer and a seller
type Deal struct {
	Id               string     `db:"id"`
	BuyerId          string     `db:"buyer_id"`
	SellerId         string     `db:"seller_id"`
	Amount           int64      `db:"amount"` // minor currency units
	Currency         string     `db:"currency"`
	Description      string     `db:"description"`
	Status           DealStatus `db:"status"`
	PaymentIntentId  string     `db:"payment_intent_id"`
	TransferId       string     `db:"transfer_id"`
	FeePercent       int64      `db:"fee_percent"`
	DisputeReason    string     `db:"dispute_reason"`
	DisputeInitiator string     `db:"dispute_initiator"`
	DisputedAt       *time.Time `db:"disputed_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	CancelledAt      *time.Time `db:"cancelled_at"`
	RefundedAt       *time.Time `db:"refunded_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	Milestones       []Milestone
}

// IsParticipant reports whether userId is the buyer or the seller
func (d *Deal) IsParticipant(userId string) bool {
	return userId != "" && (userId == d.BuyerId || userId == d.SellerId)
}

// Counterparty returns the other participant, or "" if userId is not part of the deal
func (d *Deal) Counterparty(userId string) string {
	switch userId {
	case d.BuyerId:
		return d.SellerId
	case d.SellerId:
		return d.BuyerId
	}
	return ""
}

// ProcessedEvent records a gateway event that has been fully handled
type ProcessedEvent struct {
	Id         string    `db:"id"`
	EventId    string    `db:"event_id"`
	Kind       string    `db:"kind"`
	ReceivedAt time.Time `db:"received_at"`
}

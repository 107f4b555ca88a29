package models

// MessageKind selects the template used to notify a participant
type MessageKind string

const (
	MessageDealCreated      MessageKind = "deal_created"
	MessagePaymentRequested MessageKind = "payment_requested"
	MessageDealPaid         MessageKind = "deal_paid"
	MessagePaymentFailed    MessageKind = "payment_failed"
	MessageDealCompleted    MessageKind = "deal_completed"
	MessageDealDisputed     MessageKind = "deal_disputed"
	MessageDealCancelled    MessageKind = "deal_cancelled"
	MessageAccountUpdated   MessageKind = "account_updated"
)

// NotificationPayload carries the values a template may reference
type NotificationPayload struct {
	DealId      string
	Amount      string
	NetAmount   string
	Fee         string
	Description string
	Reason      string
	Initiator   string
	Status      string
	PaymentLink string
}

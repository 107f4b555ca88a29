package escrow

import (
	"errors"
	"fmt"
)

// Error classes. Every error returned by Service wraps exactly one of these,
// so callers can classify with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrPreconditionFailed = errors.New("deal is not in the right state")
	ErrGateway            = errors.New("payment gateway error")
	ErrInvalidSignature   = errors.New("invalid event signature")
	ErrNotFound           = errors.New("not found")
)

// Specific failures, each tied to its class.
var (
	ErrSelfDealing           = fmt.Errorf("%w: buyer and seller must differ", ErrValidation)
	ErrAmountTooSmall        = fmt.Errorf("%w: amount below minimum", ErrValidation)
	ErrInvalidFee            = fmt.Errorf("%w: fee percent must be between 0 and 10", ErrValidation)
	ErrInvalidDescription    = fmt.Errorf("%w: description length out of bounds", ErrValidation)
	ErrInvalidMilestones     = fmt.Errorf("%w: milestones must be positive and not exceed the deal amount", ErrValidation)
	ErrInvalidReason         = fmt.Errorf("%w: dispute reason length out of bounds", ErrValidation)
	ErrSellerNotOnboarded    = fmt.Errorf("%w: seller has no active payment account", ErrValidation)
	ErrUserBanned            = fmt.Errorf("%w: participant is banned", ErrValidation)
	ErrNotParticipant        = fmt.Errorf("%w: caller is not a participant of this deal", ErrPreconditionFailed)
	ErrInvalidSellerOrStatus = fmt.Errorf("%w: only the seller can release a paid deal", ErrPreconditionFailed)
	ErrIntentMismatch        = fmt.Errorf("%w: payment intent does not belong to this deal", ErrPreconditionFailed)
	ErrPaymentReceived       = fmt.Errorf("%w: payment already received, the deal can no longer be cancelled", ErrPreconditionFailed)
)

// Outcomes a Gateway reports from CancelPayment when the intent has left the
// cancellable states.
var (
	ErrPaymentAlreadyCancelled = errors.New("payment intent already cancelled")
	ErrPaymentAlreadySucceeded = errors.New("payment intent already succeeded or is processing")
)

// GatewayError wraps a failed payment processor call. It may be transient.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() []error {
	return []error{ErrGateway, e.Err}
}

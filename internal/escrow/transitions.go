package escrow

import "escrow-bot-go/internal/models"

// allowedTransitions is the complete deal lifecycle. Nothing enters refunded
// yet: resolving a dispute in the buyer's favour has no automated path.
var allowedTransitions = map[models.DealStatus][]models.DealStatus{
	models.DealStatusCreated: {
		models.DealStatusPaid,
		models.DealStatusDisputed,
		models.DealStatusCancelled,
	},
	models.DealStatusPaid: {
		models.DealStatusCompleted,
		models.DealStatusDisputed,
		models.DealStatusRefunded,
	},
	models.DealStatusDisputed:  {},
	models.DealStatusCompleted: {},
	models.DealStatusCancelled: {},
	models.DealStatusRefunded:  {},
}

// disputableStatuses is narrower than the transition table allows; only a
// funded deal can be disputed.
var disputableStatuses = map[models.DealStatus]bool{
	models.DealStatusPaid: true,
}

// CanTransition checks if a transition from one status to another is allowed.
func CanTransition(from, to models.DealStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

package subscription

import (
	"github.com/studypass/billing/pkg/apperr"
	"github.com/studypass/billing/pkg/types"
)

// transitions is the closed set of allowed status changes. Anything absent
// from the table is rejected at the boundary. The active → active self-loop
// is the renewal transition.
var transitions = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubscriptionStatusActive: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusPaused,
		types.SubscriptionStatusCancelled,
		types.SubscriptionStatusExpired,
	},
	types.SubscriptionStatusPaused: {
		types.SubscriptionStatusCancelled,
	},
	// Expired subscriptions come back to life when a charge settles.
	types.SubscriptionStatusExpired: {
		types.SubscriptionStatusActive,
	},
	types.SubscriptionStatusCancelled: {},
}

// CanTransition reports whether from → to is an allowed status change.
func CanTransition(from, to types.SubscriptionStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func validateTransition(from, to types.SubscriptionStatus) error {
	if !CanTransition(from, to) {
		return apperr.Conflictf("invalid subscription transition %s -> %s", from, to)
	}
	return nil
}

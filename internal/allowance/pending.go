package allowance

import "liquidityTrade/internal/model"

// pendingTransitions lists every allowed move of the optimistic approval state.
var pendingTransitions = map[model.PendingApprovalState][]model.PendingApprovalState{
	model.PendingIdle:      {model.PendingApproving, model.PendingRevoking},
	model.PendingApproving: {model.PendingApproved, model.PendingIdle},
	// A confirmed approval may be superseded by a new submission before the next sync.
	model.PendingApproved: {model.PendingIdle, model.PendingApproving, model.PendingRevoking},
	model.PendingRevoking:  {model.PendingIdle},
}

// CanTransition reports whether the pending state may move from one value to another.
func CanTransition(from, to model.PendingApprovalState) bool {
	for _, next := range pendingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

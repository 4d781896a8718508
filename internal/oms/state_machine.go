package oms

// IsValidTransition reports whether an order may move from one state to
// another. It is pure and total over the state set; every event application
// must pass this check before mutating an order. Dropping events that fail
// the check is the sole defense against duplicate or out-of-order adapter
// messages.
func IsValidTransition(from, to OrderState) bool {
	switch from {
	case StatePending:
		return to == StateAcknowledged || to == StateRejected
	case StateAcknowledged:
		return to == StatePartiallyFilled ||
			to == StateFilled ||
			to == StateCancelled ||
			to == StateExpired
	case StatePartiallyFilled:
		return to == StatePartiallyFilled ||
			to == StateFilled ||
			to == StateCancelled
	default:
		// Filled, Cancelled, Rejected, Expired accept nothing.
		return false
	}
}

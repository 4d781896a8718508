package oms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidTransitionExhaustive(t *testing.T) {
	allowed := map[OrderState][]OrderState{
		StatePending:         {StateAcknowledged, StateRejected},
		StateAcknowledged:    {StatePartiallyFilled, StateFilled, StateCancelled, StateExpired},
		StatePartiallyFilled: {StatePartiallyFilled, StateFilled, StateCancelled},
		StateFilled:          {},
		StateCancelled:       {},
		StateRejected:        {},
		StateExpired:         {},
	}

	states := []OrderState{
		StatePending,
		StateAcknowledged,
		StatePartiallyFilled,
		StateFilled,
		StateCancelled,
		StateRejected,
		StateExpired,
	}

	for _, from := range states {
		for _, to := range states {
			want := false
			for _, candidate := range allowed[from] {
				if candidate == to {
					want = true
					break
				}
			}
			assert.Equalf(t, want, IsValidTransition(from, to),
				"transition %s -> %s", from, to)
		}
	}
}

func TestTerminalStatesAcceptNothing(t *testing.T) {
	states := []OrderState{
		StatePending,
		StateAcknowledged,
		StatePartiallyFilled,
		StateFilled,
		StateCancelled,
		StateRejected,
		StateExpired,
	}

	for _, from := range states {
		if !from.IsTerminal() {
			continue
		}
		for _, to := range states {
			assert.Falsef(t, IsValidTransition(from, to),
				"terminal %s must not transition to %s", from, to)
		}
	}
}

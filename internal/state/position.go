package state

import (
	"sync"

	"main/internal/feed"
	"main/internal/oms"
)

// Position is the signed exposure and average entry price for a symbol.
type Position struct {
	Qty      float64
	AvgPrice float64
}

// PositionReducer folds fills and position feed updates into per-symbol
// positions. Safe for concurrent use.
type PositionReducer struct {
	mu        sync.Mutex
	positions map[string]Position
}

// NewPositionReducer creates an empty reducer.
func NewPositionReducer() *PositionReducer {
	return &PositionReducer{positions: make(map[string]Position)}
}

// ApplyFill updates the position from an execution and returns the new
// position. Buys increase exposure, sells decrease it. The average entry
// price is volume-weighted while the position grows and resets when the
// position flips sign.
func (r *PositionReducer) ApplyFill(symbol string, side oms.Side, qty, price float64) Position {
	if qty <= 0 {
		return r.Position(symbol)
	}

	signed := qty
	if side == oms.SideSell {
		signed = -qty
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.positions[symbol]
	next := Position{Qty: current.Qty + signed}

	switch {
	case current.Qty == 0 || sameSign(current.Qty, signed):
		total := abs(current.Qty) + qty
		next.AvgPrice = (current.AvgPrice*abs(current.Qty) + price*qty) / total
	case sameSign(current.Qty, next.Qty):
		// Reduced without flipping; entry price unchanged.
		next.AvgPrice = current.AvgPrice
	case next.Qty == 0:
		next.AvgPrice = 0
	default:
		// Flipped through zero; the remainder was opened at this price.
		next.AvgPrice = price
	}

	r.positions[symbol] = next
	return next
}

// ApplyUpdate replaces the position from an authoritative feed snapshot.
func (r *PositionReducer) ApplyUpdate(update feed.PositionUpdate) Position {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := Position{Qty: update.Qty, AvgPrice: update.AvgPrice}
	r.positions[update.Symbol] = next
	return next
}

// Position returns the current position for a symbol.
func (r *PositionReducer) Position(symbol string) Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.positions[symbol]
}

// Count returns the number of tracked symbols.
func (r *PositionReducer) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.positions)
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

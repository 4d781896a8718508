// Package feed defines the normalized market data, position and inventory
// inputs the strategy consumes, plus thin WebSocket consumers for the
// external producers of those streams.
package feed

// Level is one price level of an order book side.
type Level struct {
	Price float64
	Qty   float64
}

// BookUpdate is a normalized order book snapshot. Bids are sorted
// descending by price, asks ascending.
type BookUpdate struct {
	Symbol      string
	Bids        []Level
	Asks        []Level
	TimestampUS int64
}

// Best returns the top of book. ok is false when either side is empty.
func (b BookUpdate) Best() (bid, ask float64, ok bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, 0, false
	}
	return b.Bids[0].Price, b.Asks[0].Price, true
}

// Mid returns the mid price, zero when the book is one-sided.
func (b BookUpdate) Mid() float64 {
	bid, ask, ok := b.Best()
	if !ok {
		return 0
	}
	return (bid + ask) / 2
}

// PositionUpdate reports the exchange position for a symbol.
type PositionUpdate struct {
	Symbol   string
	Exchange string
	Qty      float64
	AvgPrice float64
}

// InventoryUpdate reports the current off-exchange exposure for a symbol,
// published by an external hedging system. Delta is a level, not an
// increment.
type InventoryUpdate struct {
	Symbol string
	Delta  float64
}

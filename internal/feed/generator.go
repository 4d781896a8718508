package feed

import (
	"math"
	"time"
)

// Generator creates synthetic book snapshots for paper trading when no
// external normalizer is attached. Prices follow a slow sine walk around
// the base price so quoting reacts to movement.
type Generator struct {
	symbol    string
	basePrice float64
	spread    float64
	size      float64
	depth     int
	tick      int
}

// NewGenerator creates a generator for one symbol.
func NewGenerator(symbol string, basePrice, spread, size float64, depth int) *Generator {
	if depth <= 0 {
		depth = 5
	}
	if size <= 0 {
		size = 1
	}
	return &Generator{
		symbol:    symbol,
		basePrice: basePrice,
		spread:    spread,
		size:      size,
		depth:     depth,
	}
}

// Next creates the next snapshot in sequence.
func (g *Generator) Next(now time.Time) BookUpdate {
	g.tick++
	mid := g.basePrice + g.basePrice*0.0005*math.Sin(float64(g.tick)/50)

	bids := make([]Level, 0, g.depth)
	asks := make([]Level, 0, g.depth)
	for i := 0; i < g.depth; i++ {
		offset := g.spread/2 + g.spread*float64(i)
		bids = append(bids, Level{Price: mid - offset, Qty: g.size})
		asks = append(asks, Level{Price: mid + offset, Qty: g.size})
	}

	return BookUpdate{
		Symbol:      g.symbol,
		Bids:        bids,
		Asks:        asks,
		TimestampUS: now.UnixMicro(),
	}
}

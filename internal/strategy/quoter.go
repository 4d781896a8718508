// Package strategy implements the inventory-aware market making loop: it
// consumes book, position and inventory updates, prices a two-sided quote
// around mid with spread widening against accumulated inventory, and
// maintains the resting orders through the order router.
package strategy

import (
	"math"

	"main/pkg/exception"
)

// quotePlan is one computed quoting decision. A side with Submit false is
// suppressed for the cycle.
type quotePlan struct {
	Mid       float64
	SpreadBps float64
	BidPrice  float64
	AskPrice  float64
	SubmitBid bool
	SubmitAsk bool
}

// computeQuotes prices both sides for one cycle.
//
// The inventory penalty grows the whole spread, split evenly around mid,
// and the side that would unwind the position is pushed out by a further
// half spread so flow leans against accumulation. At the hard cap the
// growing side is dropped entirely for the cycle.
func computeQuotes(bestBid, bestAsk, totalInventory, targetInventory float64, cfg Config) (quotePlan, error) {
	if bestBid <= 0 || bestAsk <= 0 || bestAsk < bestBid {
		return quotePlan{}, exception.ErrStrategyEmptyBook
	}

	mid := (bestBid + bestAsk) / 2
	skew := totalInventory - targetInventory

	spreadBps := cfg.MinSpreadBps + cfg.SkewBpsPerUnit*math.Abs(skew)
	if spreadBps > cfg.MaxSpreadBps {
		spreadBps = cfg.MaxSpreadBps
	}
	if spreadBps < cfg.MinSpreadBps {
		spreadBps = cfg.MinSpreadBps
	}

	spread := mid * spreadBps / 10000

	plan := quotePlan{
		Mid:       mid,
		SpreadBps: spreadBps,
		BidPrice:  mid - spread/2,
		AskPrice:  mid + spread/2,
		SubmitBid: true,
		SubmitAsk: true,
	}

	switch {
	case skew > 0:
		plan.AskPrice += spread / 2
	case skew < 0:
		plan.BidPrice -= spread / 2
	}

	// The cap overrides the widening above: the growing side is not
	// quoted at all once inventory reaches the limit.
	if cfg.MaxPositionSize > 0 && math.Abs(totalInventory) >= cfg.MaxPositionSize {
		if totalInventory > 0 {
			plan.SubmitAsk = false
		} else {
			plan.SubmitBid = false
		}
	}

	return plan, nil
}

package risk

import (
	"math"
	"sync"
	"time"

	"main/internal/oms"
)

// Config defines static pre-trade limits for operator-driven order flow.
// The quoting engine's own inventory cap is separate; these checks guard
// everything that reaches the router.
type Config struct {
	KillSwitch           bool          `json:"killSwitch"`
	MaxOrderQty          float64       `json:"maxOrderQty"`
	MaxOrderNotional     float64       `json:"maxOrderNotional"`
	MaxPriceDeviationBps float64       `json:"maxPriceDeviationBps"`
	OrderRateLimit       int           `json:"orderRateLimit"`
	OrderRateWindow      time.Duration `json:"orderRateWindow"`
}

// Action is the outcome of a risk evaluation.
type Action uint8

const (
	ActionAllow Action = iota
	ActionDeny
)

// Reason explains a deny.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonKillSwitch
	ReasonRateLimit
	ReasonMaxQty
	ReasonMaxNotional
	ReasonPriceBand
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonKillSwitch:
		return "kill switch"
	case ReasonRateLimit:
		return "order rate limit"
	case ReasonMaxQty:
		return "max order quantity"
	case ReasonMaxNotional:
		return "max order notional"
	case ReasonPriceBand:
		return "price band"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating one order.
type Decision struct {
	ClOrdID string
	Action  Action
	Reason  Reason
}

// Allowed reports whether the order may proceed.
func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// Engine evaluates pre-trade risk decisions.
type Engine struct {
	cfg Config

	mu              sync.Mutex
	rateWindowStart time.Time
	rateCount       int
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate applies the configured checks to an order. The reference price
// anchors the price band check; pass zero when no mark is known.
func (e *Engine) Evaluate(order oms.Order, referencePrice float64) Decision {
	decision := Decision{ClOrdID: order.ClOrdID}

	if e.cfg.KillSwitch {
		return deny(decision, ReasonKillSwitch)
	}

	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 && !e.withinRate() {
		return deny(decision, ReasonRateLimit)
	}

	if e.cfg.MaxOrderQty > 0 && order.Qty > e.cfg.MaxOrderQty {
		return deny(decision, ReasonMaxQty)
	}

	if e.cfg.MaxOrderNotional > 0 && !order.IsMarket && order.Price*order.Qty > e.cfg.MaxOrderNotional {
		return deny(decision, ReasonMaxNotional)
	}

	if e.cfg.MaxPriceDeviationBps > 0 && !order.IsMarket && referencePrice > 0 {
		deviation := math.Abs(order.Price-referencePrice) / referencePrice * 10000
		if deviation > e.cfg.MaxPriceDeviationBps {
			return deny(decision, ReasonPriceBand)
		}
	}

	return decision
}

func (e *Engine) withinRate() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
		e.rateWindowStart = now
		e.rateCount = 0
	}
	e.rateCount++
	return e.rateCount <= e.cfg.OrderRateLimit
}

func deny(d Decision, reason Reason) Decision {
	d.Action = ActionDeny
	d.Reason = reason
	return d
}

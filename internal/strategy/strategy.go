package strategy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/feed"
	"main/internal/glft"
	"main/internal/obs"
	"main/internal/oms"
	"main/internal/risk"
	"main/internal/state"
	"main/pkg/exception"
)

// Config defines one market making instance.
type Config struct {
	Symbol          string  `json:"symbol"`
	Exchange        string  `json:"exchange"`
	MinSpreadBps    float64 `json:"minSpreadBps"`
	MaxSpreadBps    float64 `json:"maxSpreadBps"`
	SkewBpsPerUnit  float64 `json:"skewBpsPerUnit"`
	QuoteSize       float64 `json:"quoteSize"`
	MaxPositionSize float64 `json:"maxPositionSize"`
}

// Validate rejects configs that cannot quote.
func (c Config) Validate() error {
	if c.Symbol == "" || c.Exchange == "" {
		return exception.ErrInvalidArgument
	}
	if c.MinSpreadBps <= 0 || c.QuoteSize <= 0 {
		return exception.ErrInvalidArgument
	}
	if c.MaxSpreadBps > 0 && c.MaxSpreadBps < c.MinSpreadBps {
		return exception.ErrInvalidArgument
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.MaxSpreadBps <= 0 {
		c.MaxSpreadBps = c.MinSpreadBps * 10
	}
	if c.SkewBpsPerUnit <= 0 {
		c.SkewBpsPerUnit = 10
	}
	return c
}

// RejectHandler observes order rejects. The strategy never retries a
// rejected order on its own.
type RejectHandler func(oms.OrderEvent)

// MarketMaker maintains a two-sided quote for one symbol on one exchange.
// All mutable quoting state lives behind a single lock; update handlers
// run their full cycle inside it.
type MarketMaker struct {
	cfg       Config
	router    *oms.Router
	model     *glft.Model
	riskGuard *risk.Engine
	positions *state.PositionReducer
	metrics   *obs.Metrics

	seq      atomic.Uint64
	onReject atomic.Value

	mu             sync.Mutex
	running        bool
	book           feed.BookUpdate
	inventoryDelta float64
	activeBid      string
	activeAsk      string
}

// NewMarketMaker wires a strategy instance. Nothing runs until Start.
func NewMarketMaker(cfg Config, router *oms.Router, model *glft.Model, guard *risk.Engine, positions *state.PositionReducer, metrics *obs.Metrics) (*MarketMaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if router == nil || model == nil || positions == nil {
		return nil, exception.ErrNilInstance
	}

	m := &MarketMaker{
		cfg:       cfg.withDefaults(),
		router:    router,
		model:     model,
		riskGuard: guard,
		positions: positions,
		metrics:   metrics,
	}
	m.seq.Store(uint64(time.Now().UnixMilli()) << 16)
	router.SetEventHandler(m.HandleOrderEvent)
	return m, nil
}

// SetRejectHandler installs the external reject observer.
func (m *MarketMaker) SetRejectHandler(handler RejectHandler) {
	if handler == nil {
		return
	}
	m.onReject.Store(handler)
}

// RegisterExchange is a pass-through to the router.
func (m *MarketMaker) RegisterExchange(name string, adapter oms.ExchangeOMS) error {
	return m.router.RegisterExchange(name, adapter)
}

// Start moves the strategy to running. At least one exchange must be
// registered, and the configured quoting exchange in particular.
func (m *MarketMaker) Start() error {
	if !m.router.IsRegistered(m.cfg.Exchange) {
		return exception.ErrStrategyNoExchange
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	m.running = true
	logs.Infof("strategy started, symbol: %s, exchange: %s", m.cfg.Symbol, m.cfg.Exchange)
	return nil
}

// Stop halts quoting and issues best-effort cancels for every order the
// table still shows as open. Idempotent.
func (m *MarketMaker) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.activeBid = ""
	m.activeAsk = ""
	m.mu.Unlock()

	for _, info := range m.router.Table().Active() {
		if !m.router.CancelOrder(info.Exchange, info.ClOrdID) {
			logs.Errorf("stop: cancel %s on %s refused", info.ClOrdID, info.Exchange)
		}
	}
	logs.Infof("strategy stopped, symbol: %s", m.cfg.Symbol)
}

// Running reports whether the strategy is quoting.
func (m *MarketMaker) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// OnBookUpdate stores the snapshot and requotes.
func (m *MarketMaker) OnBookUpdate(update feed.BookUpdate) {
	if update.Symbol != m.cfg.Symbol {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.book = update
	if m.running {
		m.requote()
	}
}

// OnPositionUpdate replaces the exchange position and requotes.
func (m *MarketMaker) OnPositionUpdate(update feed.PositionUpdate) {
	if update.Symbol != m.cfg.Symbol {
		return
	}
	m.positions.ApplyUpdate(update)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.requote()
	}
}

// OnInventoryUpdate sets the off-exchange exposure level and requotes.
func (m *MarketMaker) OnInventoryUpdate(update feed.InventoryUpdate) {
	if update.Symbol != m.cfg.Symbol {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inventoryDelta = update.Delta
	if m.running {
		m.requote()
	}
}

// HandleOrderEvent consumes router fan-in. Fills fold into the position
// and requote, cancels only clear tracking so a cancel burst cannot storm
// the adapter, rejects surface to the external observer.
func (m *MarketMaker) HandleOrderEvent(ev oms.OrderEvent) {
	var rejected bool

	m.mu.Lock()
	switch ev.Type {
	case oms.EventFill:
		if info, ok := m.router.Table().Get(ev.ClOrdID); ok {
			m.positions.ApplyFill(ev.Symbol, info.Side, ev.FillQty, ev.FillPrice)
			if info.State.IsTerminal() {
				m.clearSlot(ev.ClOrdID)
			}
		}
		if m.running && ev.Symbol == m.cfg.Symbol {
			m.requote()
		}
	case oms.EventCancel:
		m.clearSlot(ev.ClOrdID)
	case oms.EventReject:
		m.clearSlot(ev.ClOrdID)
		rejected = true
	}
	m.mu.Unlock()

	if rejected {
		if handler, ok := m.onReject.Load().(RejectHandler); ok && handler != nil {
			handler(ev)
		}
	}
}

// SubmitOrder places an operator-driven order through the same risk check
// and router as the quoting loop.
func (m *MarketMaker) SubmitOrder(order oms.Order) bool {
	if !m.allowed(order, order.Price) {
		return false
	}
	return m.router.SendOrder(order)
}

// CancelOrder cancels an operator-driven order.
func (m *MarketMaker) CancelOrder(exchange, clOrdID string) bool {
	return m.router.CancelOrder(exchange, clOrdID)
}

// requote runs one full cancel-and-replace cycle. Caller holds m.mu.
func (m *MarketMaker) requote() {
	started := time.Now()
	defer func() {
		m.metrics.ObserveQuoteCycle(time.Since(started))
	}()

	bestBid, bestAsk, ok := m.book.Best()
	if !ok {
		return
	}

	total := m.positions.Position(m.cfg.Symbol).Qty + m.inventoryDelta
	target := m.model.ComputeTarget(-total)

	plan, err := computeQuotes(bestBid, bestAsk, total, target, m.cfg)
	if err != nil {
		logs.Errorf("compute quotes for %s, err: %+v", m.cfg.Symbol, err)
		return
	}

	m.cancelSlot(&m.activeBid)
	m.cancelSlot(&m.activeAsk)

	if plan.SubmitBid {
		m.activeBid = m.place(oms.SideBuy, plan.BidPrice, plan.Mid)
	}
	if plan.SubmitAsk {
		m.activeAsk = m.place(oms.SideSell, plan.AskPrice, plan.Mid)
	}
}

// cancelSlot cancels the resting order in a slot, if any. Cancelling an
// already-terminal order is a no-op inside the router.
func (m *MarketMaker) cancelSlot(slot *string) {
	if *slot == "" {
		return
	}
	m.router.CancelOrder(m.cfg.Exchange, *slot)
	*slot = ""
}

// place submits one quote side and returns its client order id, or empty
// when risk or the adapter refused it.
func (m *MarketMaker) place(side oms.Side, price, referencePrice float64) string {
	order := oms.Order{
		ClOrdID:  m.nextClOrdID(side),
		Exchange: m.cfg.Exchange,
		Symbol:   m.cfg.Symbol,
		Side:     side,
		Qty:      m.cfg.QuoteSize,
		Price:    price,
	}

	if !m.allowed(order, referencePrice) {
		return ""
	}
	if !m.router.SendOrder(order) {
		logs.Errorf("quote %s %s refused", order.ClOrdID, side)
		return ""
	}
	return order.ClOrdID
}

func (m *MarketMaker) allowed(order oms.Order, referencePrice float64) bool {
	if m.riskGuard == nil {
		return true
	}
	decision := m.riskGuard.Evaluate(order, referencePrice)
	if !decision.Allowed() {
		logs.Infof("order %s denied, reason: %s", order.ClOrdID, decision.Reason)
		return false
	}
	return true
}

func (m *MarketMaker) clearSlot(clOrdID string) {
	if m.activeBid == clOrdID {
		m.activeBid = ""
	}
	if m.activeAsk == clOrdID {
		m.activeAsk = ""
	}
}

func (m *MarketMaker) nextClOrdID(side oms.Side) string {
	return fmt.Sprintf("%s-%s-%d", m.cfg.Symbol, side, m.seq.Add(1))
}

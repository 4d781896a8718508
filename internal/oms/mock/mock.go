// Package mock provides the reference ExchangeOMS adapter used in tests
// and paper trading. It simulates an exchange's private order channel:
// accepted orders are acknowledged and filled asynchronously from the
// adapter's own goroutines, with configurable probabilities and latency.
package mock

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"main/internal/oms"
)

// Config controls the simulated exchange behavior.
type Config struct {
	Name              string
	Symbols           []string
	FillProbability   float64
	RejectProbability float64
	// FillParts splits a simulated execution into this many partial fills.
	FillParts     int
	ResponseDelay time.Duration
	// MarkPrice is the execution price for market orders.
	MarkPrice float64
	Seed      uint64
}

// Exchange is a simulated exchange OMS.
type Exchange struct {
	cfg       Config
	connected atomic.Bool

	mu      sync.Mutex
	rng     *rand.Rand
	handler oms.EventHandler
	orders  map[string]oms.Order // cl_ord_id -> order
	exchIDs map[string]string    // cl_ord_id -> exchange order id
}

// New creates a mock exchange adapter.
func New(cfg Config) *Exchange {
	if cfg.Name == "" {
		cfg.Name = "MOCK"
	}
	if cfg.FillParts <= 0 {
		cfg.FillParts = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Exchange{
		cfg:     cfg,
		rng:     rand.New(rand.NewPCG(seed, seed>>1)),
		orders:  make(map[string]oms.Order),
		exchIDs: make(map[string]string),
	}
}

// Name returns the simulated exchange name.
func (e *Exchange) Name() string {
	return e.cfg.Name
}

// SupportedSymbols returns the configured symbol list.
func (e *Exchange) SupportedSymbols() []string {
	out := make([]string, len(e.cfg.Symbols))
	copy(out, e.cfg.Symbols)
	return out
}

// SetEventHandler rewires where order events are emitted.
func (e *Exchange) SetEventHandler(handler oms.EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Connect marks the adapter connected.
func (e *Exchange) Connect() bool {
	e.connected.Store(true)
	return true
}

// Disconnect marks the adapter disconnected. In-flight simulations for
// orders accepted before the disconnect still emit their events.
func (e *Exchange) Disconnect() {
	e.connected.Store(false)
}

// IsConnected reports the connection state.
func (e *Exchange) IsConnected() bool {
	return e.connected.Load()
}

// SendOrder accepts the order into the local queue and schedules the
// simulated exchange response.
func (e *Exchange) SendOrder(order oms.Order) bool {
	if !e.connected.Load() {
		logs.Infof("[%s] not connected, refusing order %s", e.cfg.Name, order.ClOrdID)
		return false
	}

	exchangeOrderID := uuid.NewString()

	e.mu.Lock()
	e.orders[order.ClOrdID] = order
	e.exchIDs[order.ClOrdID] = exchangeOrderID
	e.mu.Unlock()

	go e.process(order, exchangeOrderID)
	return true
}

// CancelOrder removes the resting order and emits a Cancel event.
func (e *Exchange) CancelOrder(clOrdID, exchangeOrderID string) bool {
	if !e.connected.Load() {
		return false
	}

	e.mu.Lock()
	_, ok := e.orders[clOrdID]
	if ok {
		if exchangeOrderID == "" {
			exchangeOrderID = e.exchIDs[clOrdID]
		}
		delete(e.orders, clOrdID)
		delete(e.exchIDs, clOrdID)
	}
	handler := e.handler
	e.mu.Unlock()

	if !ok {
		return false
	}

	if handler != nil {
		go handler(oms.OrderEvent{
			ClOrdID:         clOrdID,
			Exchange:        e.cfg.Name,
			Type:            oms.EventCancel,
			ExchangeOrderID: exchangeOrderID,
			TimestampUS:     time.Now().UnixMicro(),
		})
	}
	return true
}

// ModifyOrder amends the resting order price/quantity in place.
func (e *Exchange) ModifyOrder(clOrdID, exchangeOrderID string, newPrice, newQty float64) bool {
	if !e.connected.Load() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[clOrdID]
	if !ok {
		return false
	}
	if newPrice > 0 {
		order.Price = newPrice
	}
	if newQty > 0 {
		order.Qty = newQty
	}
	e.orders[clOrdID] = order
	return true
}

func (e *Exchange) process(order oms.Order, exchangeOrderID string) {
	if e.cfg.ResponseDelay > 0 {
		time.Sleep(e.cfg.ResponseDelay)
	}

	e.mu.Lock()
	handler := e.handler
	rejected := e.rng.Float64() < e.cfg.RejectProbability
	filled := !rejected && e.rng.Float64() < e.cfg.FillProbability
	e.mu.Unlock()

	if handler == nil {
		return
	}

	if rejected {
		e.forget(order.ClOrdID)
		handler(oms.OrderEvent{
			ClOrdID:     order.ClOrdID,
			Exchange:    e.cfg.Name,
			Symbol:      order.Symbol,
			Type:        oms.EventReject,
			Text:        "rejected by simulated exchange",
			TimestampUS: time.Now().UnixMicro(),
		})
		return
	}

	handler(oms.OrderEvent{
		ClOrdID:         order.ClOrdID,
		Exchange:        e.cfg.Name,
		Symbol:          order.Symbol,
		Type:            oms.EventAck,
		ExchangeOrderID: exchangeOrderID,
		TimestampUS:     time.Now().UnixMicro(),
	})

	if !filled {
		return
	}

	e.forget(order.ClOrdID)
	price := order.Price
	if order.IsMarket || price <= 0 {
		price = e.cfg.MarkPrice
	}
	parts := e.cfg.FillParts
	part := order.Qty / float64(parts)
	for i := 0; i < parts; i++ {
		qty := part
		if i == parts-1 {
			qty = order.Qty - part*float64(parts-1)
		}
		handler(oms.OrderEvent{
			ClOrdID:         order.ClOrdID,
			Exchange:        e.cfg.Name,
			Symbol:          order.Symbol,
			Type:            oms.EventFill,
			FillQty:         qty,
			FillPrice:       price,
			ExchangeOrderID: exchangeOrderID,
			TimestampUS:     time.Now().UnixMicro(),
		})
	}
}

func (e *Exchange) forget(clOrdID string) {
	e.mu.Lock()
	delete(e.orders, clOrdID)
	delete(e.exchIDs, clOrdID)
	e.mu.Unlock()
}

package oms

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/obs"
	"main/pkg/exception"
)

const defaultQueueSize = 1024

// StateHandler receives a copy of the lifecycle record after every applied
// state change, including changes with no corresponding order event (the
// age-based expiry sweep).
type StateHandler func(StateInfo)

// RouterConfig tunes the router.
type RouterConfig struct {
	// QueueSize bounds each adapter's event queue.
	QueueSize int
	Metrics   *obs.Metrics
}

// Router is the registry of exchange adapters. It fans commands out by
// exchange name and fans the adapters' asynchronous events back into one
// handler through a bounded queue per adapter, so ordering is guaranteed
// per exchange while different exchanges deliver concurrently.
type Router struct {
	mu       sync.Mutex
	adapters map[string]ExchangeOMS
	queues   map[string]*bus.Queue[OrderEvent]

	table   *Table
	metrics *obs.Metrics

	handler      EventHandler
	stateHandler StateHandler

	queueSize int
	wg        sync.WaitGroup
}

// NewRouter creates a router with an empty adapter registry.
func NewRouter(cfg RouterConfig) *Router {
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Router{
		adapters:  make(map[string]ExchangeOMS),
		queues:    make(map[string]*bus.Queue[OrderEvent]),
		table:     NewTable(),
		metrics:   cfg.Metrics,
		queueSize: size,
	}
}

// Table exposes the order tracking table for queries.
func (r *Router) Table() *Table {
	return r.table
}

// SetEventHandler sets the single outbound event callback. Call before
// registering exchanges.
func (r *Router) SetEventHandler(handler EventHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = handler
}

// SetStateHandler sets the lifecycle record callback.
func (r *Router) SetStateHandler(handler StateHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateHandler = handler
}

// RegisterExchange stores the adapter and rewires its event emission into
// the router's fan-in queue for that exchange.
func (r *Router) RegisterExchange(name string, adapter ExchangeOMS) error {
	if name == "" || adapter == nil {
		return exception.ErrInvalidArgument
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[name]; ok {
		return errors.Wrap(exception.ErrOrderDuplicate, name)
	}

	queue := bus.NewQueue[OrderEvent](r.queueSize)
	r.adapters[name] = adapter
	r.queues[name] = queue

	exch := name
	adapter.SetEventHandler(func(ev OrderEvent) {
		ev.Exchange = exch
		if err := queue.TryPublish(ev); err != nil {
			r.metrics.IncQueueDrop()
			logs.Errorf("drop order event %s %s from %s, err: %+v", ev.Type, ev.ClOrdID, exch, err)
		}
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		queue.Run(context.Background(), r.dispatch)
	}()

	logs.Infof("registered exchange %s", name)
	return nil
}

// UnregisterExchange disconnects the adapter, cancels its open orders and
// removes it from the registry.
func (r *Router) UnregisterExchange(name string) {
	r.mu.Lock()
	adapter, ok := r.adapters[name]
	queue := r.queues[name]
	delete(r.adapters, name)
	delete(r.queues, name)
	r.mu.Unlock()

	if !ok {
		return
	}

	adapter.Disconnect()
	queue.Close()
	r.cascadeCancel(name, "exchange unregistered")
	logs.Infof("unregistered exchange %s", name)
}

// SendOrder routes the order by its exchange name. A missing exchange
// synthesizes an immediate Reject carrying the submitted client order id
// and touches no adapter.
func (r *Router) SendOrder(order Order) bool {
	if err := r.table.Track(order); err != nil {
		logs.Errorf("track order %s, err: %+v", order.ClOrdID, err)
		return false
	}

	r.mu.Lock()
	adapter, ok := r.adapters[order.Exchange]
	r.mu.Unlock()

	if !ok {
		r.metrics.IncRoutingReject()
		// Delivered off the caller's goroutine, like adapter events, so
		// a handler may submit while holding its own lock.
		go r.dispatch(OrderEvent{
			ClOrdID:     order.ClOrdID,
			Exchange:    order.Exchange,
			Symbol:      order.Symbol,
			Type:        EventReject,
			Text:        exception.ErrOrderUnknownExchange.Error(),
			TimestampUS: time.Now().UnixMicro(),
		})
		return false
	}

	if !adapter.SendOrder(order) {
		// Adapter failure propagates as a boolean; the order stays
		// Pending until the age sweep rejects it.
		logs.Errorf("adapter %s refused order %s", order.Exchange, order.ClOrdID)
		return false
	}

	r.metrics.IncOrderSubmitted()
	return true
}

// CancelOrder requests a cancel on the owning exchange. Cancelling an
// order already in a terminal state is a no-op returning false; no event
// is emitted and no adapter is touched.
func (r *Router) CancelOrder(exchange, clOrdID string) bool {
	info, tracked := r.table.Get(clOrdID)
	if tracked && info.State.IsTerminal() {
		logs.Infof("cancel %s in state %s: %s", clOrdID, info.State, exception.ErrOrderTerminal)
		return false
	}

	exchangeOrderID := ""
	if tracked {
		exchangeOrderID = info.ExchangeOrderID
	}

	r.mu.Lock()
	adapter, ok := r.adapters[exchange]
	r.mu.Unlock()
	if !ok {
		logs.Errorf("cancel %s: exchange %s not registered", clOrdID, exchange)
		return false
	}

	return adapter.CancelOrder(clOrdID, exchangeOrderID)
}

// ModifyOrder requests a price/quantity amendment on the owning exchange.
func (r *Router) ModifyOrder(exchange, clOrdID string, newPrice, newQty float64) bool {
	info, tracked := r.table.Get(clOrdID)
	if tracked && info.State.IsTerminal() {
		logs.Infof("modify %s in state %s: %s", clOrdID, info.State, exception.ErrOrderTerminal)
		return false
	}

	exchangeOrderID := ""
	if tracked {
		exchangeOrderID = info.ExchangeOrderID
	}

	r.mu.Lock()
	adapter, ok := r.adapters[exchange]
	r.mu.Unlock()
	if !ok {
		logs.Errorf("modify %s: exchange %s not registered", clOrdID, exchange)
		return false
	}

	return adapter.ModifyOrder(clOrdID, exchangeOrderID, newPrice, newQty)
}

// RegisteredExchanges returns the registered exchange names.
func (r *Router) RegisteredExchanges() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}

// IsRegistered reports whether the exchange name is known.
func (r *Router) IsRegistered(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.adapters[name]
	return ok
}

// ConnectAll connects every registered adapter.
func (r *Router) ConnectAll() error {
	var failed []string
	for name, adapter := range r.snapshotAdapters() {
		if !adapter.Connect() {
			failed = append(failed, name)
		}
	}
	if len(failed) != 0 {
		return errors.Wrap(exception.ErrInternal, "connect exchanges: "+strings.Join(failed, ","))
	}
	return nil
}

// DisconnectAll disconnects every adapter. Orders still tracked against a
// disconnecting adapter receive a synthetic Cancel so consumers never
// retain a phantom open order for an exchange that can no longer report.
func (r *Router) DisconnectAll() {
	for name, adapter := range r.snapshotAdapters() {
		adapter.Disconnect()
		r.cascadeCancel(name, "exchange disconnected")
	}
}

// ExpireStale sweeps orders stuck without a terminal event. Acknowledged
// orders move to Expired; Pending orders never confirmed by the exchange
// receive a synthetic Reject, the only terminal edge open to them.
func (r *Router) ExpireStale(maxAge time.Duration) {
	cutoff := time.Now().UTC().Add(-maxAge)
	pending, acknowledged := r.table.StaleBefore(cutoff)

	for _, info := range pending {
		r.dispatch(OrderEvent{
			ClOrdID:     info.ClOrdID,
			Exchange:    info.Exchange,
			Symbol:      info.Symbol,
			Type:        EventReject,
			Text:        "timed out before exchange acknowledgment",
			TimestampUS: time.Now().UnixMicro(),
		})
	}

	for _, info := range acknowledged {
		updated, err := r.table.Expire(info.ClOrdID)
		if err != nil {
			continue
		}
		r.metrics.IncExpired()
		logs.Infof("expired order %s on %s after %s", info.ClOrdID, info.Exchange, maxAge)
		r.emitState(updated)
	}
}

// Close disconnects all adapters and stops the fan-in consumers.
func (r *Router) Close() {
	r.DisconnectAll()

	r.mu.Lock()
	queues := make([]*bus.Queue[OrderEvent], 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
	r.wg.Wait()
}

// dispatch applies one event to the table and forwards it when applied.
// Synthetic events reuse this path so every consumer-visible event has
// passed the same transition guard.
func (r *Router) dispatch(ev OrderEvent) {
	info, err := r.table.Apply(ev)
	if err != nil {
		r.metrics.IncInvalidTransition()
		logs.Errorf("drop %s for %s in state %s, err: %+v", ev.Type, ev.ClOrdID, info.State, err)
		return
	}

	r.metrics.ObserveEvent(obs.EventKind(ev.Type), ev.TimestampUS, time.Now())

	r.mu.Lock()
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
	r.emitState(info)
}

func (r *Router) emitState(info StateInfo) {
	r.mu.Lock()
	handler := r.stateHandler
	r.mu.Unlock()
	if handler != nil {
		handler(info)
	}
}

func (r *Router) cascadeCancel(exchange, reason string) {
	for _, info := range r.table.ActiveByExchange(exchange) {
		eventType := EventCancel
		if info.State == StatePending {
			// Pending has no edge to Cancelled; an unconfirmed order on a
			// dead adapter terminates as a reject instead.
			eventType = EventReject
		}
		r.metrics.IncDisconnectCancel()
		r.dispatch(OrderEvent{
			ClOrdID:     info.ClOrdID,
			Exchange:    info.Exchange,
			Symbol:      info.Symbol,
			Type:        eventType,
			Text:        reason,
			TimestampUS: time.Now().UnixMicro(),
		})
	}
}

func (r *Router) snapshotAdapters() map[string]ExchangeOMS {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]ExchangeOMS, len(r.adapters))
	for name, adapter := range r.adapters {
		out[name] = adapter
	}
	return out
}

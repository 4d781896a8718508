package oms

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyAdapter records every call and lets tests emit events manually.
type spyAdapter struct {
	mu         sync.Mutex
	connected  bool
	refuseSend bool
	sent       []Order
	cancelled  []string
	modified   []modifyCall
	handler    EventHandler
}

type modifyCall struct {
	clOrdID         string
	exchangeOrderID string
	price           float64
	qty             float64
}

func (s *spyAdapter) SendOrder(order Order) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refuseSend {
		return false
	}
	s.sent = append(s.sent, order)
	return true
}

func (s *spyAdapter) CancelOrder(clOrdID, exchangeOrderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, clOrdID)
	return true
}

func (s *spyAdapter) ModifyOrder(clOrdID, exchangeOrderID string, newPrice, newQty float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = append(s.modified, modifyCall{
		clOrdID:         clOrdID,
		exchangeOrderID: exchangeOrderID,
		price:           newPrice,
		qty:             newQty,
	})
	return true
}

func (s *spyAdapter) Connect() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return true
}

func (s *spyAdapter) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
}

func (s *spyAdapter) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *spyAdapter) Name() string { return "spy" }

func (s *spyAdapter) SupportedSymbols() []string { return []string{"ETHUSDC-PERP"} }

func (s *spyAdapter) SetEventHandler(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

func (s *spyAdapter) emit(ev OrderEvent) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	handler(ev)
}

func (s *spyAdapter) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *spyAdapter) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cancelled)
}

func (s *spyAdapter) modifies() []modifyCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]modifyCall(nil), s.modified...)
}

// eventSink collects router output for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []OrderEvent
	states []StateInfo
}

func (s *eventSink) onEvent(ev OrderEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *eventSink) onState(info StateInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, info)
}

func (s *eventSink) snapshot() []OrderEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OrderEvent(nil), s.events...)
}

func (s *eventSink) stateCount(state OrderState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, info := range s.states {
		if info.State == state {
			n++
		}
	}
	return n
}

func (s *eventSink) countType(eventType EventType) int {
	n := 0
	for _, ev := range s.snapshot() {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func newTestRouter(t *testing.T) (*Router, *eventSink) {
	t.Helper()
	router := NewRouter(RouterConfig{QueueSize: 64})
	sink := &eventSink{}
	router.SetEventHandler(sink.onEvent)
	router.SetStateHandler(sink.onState)
	t.Cleanup(router.Close)
	return router, sink
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond)
}

func TestRouterUnknownExchangeReject(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("OTHER", spy))

	ok := router.SendOrder(testOrder("a-1", 1))
	assert.False(t, ok)

	waitFor(t, func() bool { return sink.countType(EventReject) == 1 })

	events := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "a-1", events[0].ClOrdID)
	assert.Equal(t, EventReject, events[0].Type)
	assert.Zero(t, spy.sentCount())

	info, tracked := router.Table().Get("a-1")
	require.True(t, tracked)
	assert.Equal(t, StateRejected, info.State)
}

func TestRouterSendRoutesToAdapter(t *testing.T) {
	router, _ := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	assert.True(t, router.SendOrder(testOrder("a-1", 1)))
	assert.Equal(t, 1, spy.sentCount())

	info, tracked := router.Table().Get("a-1")
	require.True(t, tracked)
	assert.Equal(t, StatePending, info.State)
}

func TestRouterAdapterRefusalStaysPending(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{refuseSend: true}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	assert.False(t, router.SendOrder(testOrder("a-1", 1)))

	info, tracked := router.Table().Get("a-1")
	require.True(t, tracked)
	assert.Equal(t, StatePending, info.State)
	assert.Empty(t, sink.snapshot())
}

func TestRouterDisconnectCascade(t *testing.T) {
	router, sink := newTestRouter(t)

	one := &spyAdapter{}
	two := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("ONE", one))
	require.NoError(t, router.RegisterExchange("TWO", two))

	for _, id := range []string{"a-1", "a-2", "a-3"} {
		order := testOrder(id, 1)
		order.Exchange = "ONE"
		require.True(t, router.SendOrder(order))
		one.emit(OrderEvent{ClOrdID: id, Type: EventAck, TimestampUS: time.Now().UnixMicro()})
	}
	waitFor(t, func() bool { return sink.countType(EventAck) == 3 })

	router.DisconnectAll()

	cancels := 0
	for _, ev := range sink.snapshot() {
		if ev.Type != EventCancel {
			continue
		}
		cancels++
		assert.Equal(t, "ONE", ev.Exchange)
	}
	assert.Equal(t, 3, cancels)
	assert.Empty(t, router.Table().Active())
}

func TestRouterConcurrentFillsFilledOnce(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	require.True(t, router.SendOrder(testOrder("a-1", 10)))
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventAck})
	waitFor(t, func() bool { return sink.countType(EventAck) == 1 })

	var wg sync.WaitGroup
	for _, qty := range []float64{6, 4} {
		wg.Add(1)
		go func(q float64) {
			defer wg.Done()
			spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventFill, FillQty: q, FillPrice: 2500})
		}(qty)
	}
	wg.Wait()

	waitFor(t, func() bool {
		info, _ := router.Table().Get("a-1")
		return info.State == StateFilled
	})

	info, _ := router.Table().Get("a-1")
	assert.InDelta(t, 10, info.FilledQty, 1e-12)
	assert.Equal(t, 1, sink.stateCount(StateFilled))
}

func TestRouterDuplicateFullFillDropped(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	require.True(t, router.SendOrder(testOrder("a-1", 5)))
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventAck})
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventFill, FillQty: 5, FillPrice: 2500})
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventFill, FillQty: 5, FillPrice: 2500})

	waitFor(t, func() bool { return sink.countType(EventFill) >= 1 })
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 1, sink.countType(EventFill))
	info, _ := router.Table().Get("a-1")
	assert.Equal(t, StateFilled, info.State)
	assert.InDelta(t, 5, info.FilledQty, 1e-12)
}

func TestRouterCancelTerminalIsNoop(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	require.True(t, router.SendOrder(testOrder("a-1", 1)))
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventReject, Text: "margin"})
	waitFor(t, func() bool { return sink.countType(EventReject) == 1 })

	assert.False(t, router.CancelOrder("MOCK", "a-1"))
	assert.Zero(t, spy.cancelCount())

	time.Sleep(10 * time.Millisecond)
	assert.Len(t, sink.snapshot(), 1)
}

func TestRouterExpireStale(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	require.True(t, router.SendOrder(testOrder("a-1", 1)))
	require.True(t, router.SendOrder(testOrder("a-2", 1)))
	spy.emit(OrderEvent{ClOrdID: "a-2", Type: EventAck})
	waitFor(t, func() bool { return sink.countType(EventAck) == 1 })

	time.Sleep(5 * time.Millisecond)
	router.ExpireStale(time.Millisecond)

	pending, _ := router.Table().Get("a-1")
	assert.Equal(t, StateRejected, pending.State)

	acknowledged, _ := router.Table().Get("a-2")
	assert.Equal(t, StateExpired, acknowledged.State)
	assert.Equal(t, 1, sink.stateCount(StateExpired))
}

func TestRouterModifyOrderDispatch(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	require.True(t, router.SendOrder(testOrder("a-1", 2)))
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventAck, ExchangeOrderID: "x-1"})
	waitFor(t, func() bool { return sink.countType(EventAck) == 1 })

	assert.True(t, router.ModifyOrder("MOCK", "a-1", 2510, 3))

	modifies := spy.modifies()
	require.Len(t, modifies, 1)
	assert.Equal(t, "a-1", modifies[0].clOrdID)
	assert.Equal(t, "x-1", modifies[0].exchangeOrderID)
	assert.InDelta(t, 2510, modifies[0].price, 1e-12)
	assert.InDelta(t, 3, modifies[0].qty, 1e-12)

	assert.False(t, router.ModifyOrder("GHOST", "a-1", 2510, 3))
	assert.Len(t, spy.modifies(), 1)
}

func TestRouterModifyTerminalIsNoop(t *testing.T) {
	router, sink := newTestRouter(t)

	spy := &spyAdapter{}
	require.NoError(t, router.RegisterExchange("MOCK", spy))

	require.True(t, router.SendOrder(testOrder("a-1", 1)))
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventAck})
	spy.emit(OrderEvent{ClOrdID: "a-1", Type: EventCancel})
	waitFor(t, func() bool { return sink.countType(EventCancel) == 1 })

	assert.False(t, router.ModifyOrder("MOCK", "a-1", 2510, 3))
	assert.Empty(t, spy.modifies())
}

func TestRouterRegisterDuplicate(t *testing.T) {
	router, _ := newTestRouter(t)

	require.NoError(t, router.RegisterExchange("MOCK", &spyAdapter{}))
	assert.Error(t, router.RegisterExchange("MOCK", &spyAdapter{}))
}

package mock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/oms"
)

type capture struct {
	mu     sync.Mutex
	events []oms.OrderEvent
}

func (c *capture) handler(ev oms.OrderEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *capture) byType(eventType oms.EventType) []oms.OrderEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []oms.OrderEvent
	for _, ev := range c.events {
		if ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func newConnected(t *testing.T, cfg Config) (*Exchange, *capture) {
	t.Helper()
	exchange := New(cfg)
	sink := &capture{}
	exchange.SetEventHandler(sink.handler)
	require.True(t, exchange.Connect())
	return exchange, sink
}

func sampleOrder(clOrdID string) oms.Order {
	return oms.Order{
		ClOrdID:  clOrdID,
		Exchange: "MOCK",
		Symbol:   "ETHUSDC-PERP",
		Side:     oms.SideBuy,
		Qty:      4,
		Price:    2500,
	}
}

func TestMockRefusesWhenDisconnected(t *testing.T) {
	exchange := New(Config{})
	exchange.SetEventHandler(func(oms.OrderEvent) {})

	assert.False(t, exchange.SendOrder(sampleOrder("m-1")))
	assert.False(t, exchange.CancelOrder("m-1", ""))
	assert.False(t, exchange.IsConnected())
}

func TestMockAckThenFills(t *testing.T) {
	exchange, sink := newConnected(t, Config{
		FillProbability: 1,
		FillParts:       2,
		Seed:            7,
	})

	require.True(t, exchange.SendOrder(sampleOrder("m-1")))

	require.Eventually(t, func() bool {
		return len(sink.byType(oms.EventFill)) == 2
	}, time.Second, time.Millisecond)

	acks := sink.byType(oms.EventAck)
	require.Len(t, acks, 1)
	assert.NotEmpty(t, acks[0].ExchangeOrderID)

	total := 0.0
	for _, fill := range sink.byType(oms.EventFill) {
		assert.InDelta(t, 2500, fill.FillPrice, 1e-12)
		total += fill.FillQty
	}
	assert.InDelta(t, 4, total, 1e-12)
}

func TestMockReject(t *testing.T) {
	exchange, sink := newConnected(t, Config{
		RejectProbability: 1,
		Seed:              7,
	})

	require.True(t, exchange.SendOrder(sampleOrder("m-1")))

	require.Eventually(t, func() bool {
		return len(sink.byType(oms.EventReject)) == 1
	}, time.Second, time.Millisecond)

	assert.Empty(t, sink.byType(oms.EventAck))
	assert.Empty(t, sink.byType(oms.EventFill))
}

func TestMockCancel(t *testing.T) {
	exchange, sink := newConnected(t, Config{Seed: 7})

	require.True(t, exchange.SendOrder(sampleOrder("m-1")))
	require.Eventually(t, func() bool {
		return len(sink.byType(oms.EventAck)) == 1
	}, time.Second, time.Millisecond)

	require.True(t, exchange.CancelOrder("m-1", ""))
	require.Eventually(t, func() bool {
		return len(sink.byType(oms.EventCancel)) == 1
	}, time.Second, time.Millisecond)

	// The order is gone; a second cancel has nothing to act on.
	assert.False(t, exchange.CancelOrder("m-1", ""))
}

func TestMockMarketOrderFillsAtMark(t *testing.T) {
	exchange, sink := newConnected(t, Config{
		FillProbability: 1,
		MarkPrice:       2600,
		Seed:            7,
	})

	order := sampleOrder("m-1")
	order.Price = 0
	order.IsMarket = true
	require.True(t, exchange.SendOrder(order))

	require.Eventually(t, func() bool {
		return len(sink.byType(oms.EventFill)) == 1
	}, time.Second, time.Millisecond)

	assert.InDelta(t, 2600, sink.byType(oms.EventFill)[0].FillPrice, 1e-12)
}

func TestMockModify(t *testing.T) {
	exchange, _ := newConnected(t, Config{Seed: 7})

	require.True(t, exchange.SendOrder(sampleOrder("m-1")))
	assert.True(t, exchange.ModifyOrder("m-1", "", 2510, 5))
	assert.False(t, exchange.ModifyOrder("ghost", "", 2510, 5))
}

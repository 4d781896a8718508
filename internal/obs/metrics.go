package obs

import (
	"sync/atomic"
	"time"
)

// EventKind mirrors the order event categories without depending on the
// order package.
type EventKind uint8

const (
	KindAck EventKind = iota
	KindFill
	KindCancel
	KindReject
)

// Metrics collects lightweight counters and latency stats for the order
// flow. All methods are nil-safe so wiring stays optional.
type Metrics struct {
	eventCounts [KindReject + 1]uint64

	invalidTransitions uint64
	routingRejects     uint64
	queueDrops         uint64
	disconnectCancels  uint64
	expiredOrders      uint64
	ordersSubmitted    uint64
	quoteCycles        uint64

	quoteLatency LatencyStats
	eventLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Acks               uint64
	Fills              uint64
	Cancels            uint64
	Rejects            uint64
	InvalidTransitions uint64
	RoutingRejects     uint64
	QueueDrops         uint64
	DisconnectCancels  uint64
	ExpiredOrders      uint64
	OrdersSubmitted    uint64
	QuoteCycles        uint64
	QuoteLatency       LatencySnapshot
	EventLatency       LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts an applied order event and tracks its age when the
// adapter stamped it with a microsecond timestamp.
func (m *Metrics) ObserveEvent(kind EventKind, eventTsUS int64, now time.Time) {
	if m == nil {
		return
	}
	if int(kind) < len(m.eventCounts) {
		atomic.AddUint64(&m.eventCounts[kind], 1)
	}
	if eventTsUS > 0 {
		delta := now.UnixMicro() - eventTsUS
		if delta >= 0 {
			m.eventLatency.Observe(time.Duration(delta) * time.Microsecond)
		}
	}
}

// IncInvalidTransition records a dropped event.
func (m *Metrics) IncInvalidTransition() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.invalidTransitions, 1)
}

// IncRoutingReject records a synthetic reject for an unregistered exchange.
func (m *Metrics) IncRoutingReject() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.routingRejects, 1)
}

// IncQueueDrop records an event dropped on a full adapter queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// IncDisconnectCancel records a synthetic cancel from a disconnect cascade.
func (m *Metrics) IncDisconnectCancel() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.disconnectCancels, 1)
}

// IncExpired records an order expired by the age sweep.
func (m *Metrics) IncExpired() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.expiredOrders, 1)
}

// IncOrderSubmitted records an order handed to an adapter.
func (m *Metrics) IncOrderSubmitted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersSubmitted, 1)
}

// ObserveQuoteCycle measures one full cancel-and-replace pass.
func (m *Metrics) ObserveQuoteCycle(d time.Duration) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.quoteCycles, 1)
	m.quoteLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		Acks:               atomic.LoadUint64(&m.eventCounts[KindAck]),
		Fills:              atomic.LoadUint64(&m.eventCounts[KindFill]),
		Cancels:            atomic.LoadUint64(&m.eventCounts[KindCancel]),
		Rejects:            atomic.LoadUint64(&m.eventCounts[KindReject]),
		InvalidTransitions: atomic.LoadUint64(&m.invalidTransitions),
		RoutingRejects:     atomic.LoadUint64(&m.routingRejects),
		QueueDrops:         atomic.LoadUint64(&m.queueDrops),
		DisconnectCancels:  atomic.LoadUint64(&m.disconnectCancels),
		ExpiredOrders:      atomic.LoadUint64(&m.expiredOrders),
		OrdersSubmitted:    atomic.LoadUint64(&m.ordersSubmitted),
		QuoteCycles:        atomic.LoadUint64(&m.quoteCycles),
		QuoteLatency:       m.quoteLatency.Snapshot(),
		EventLatency:       m.eventLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}

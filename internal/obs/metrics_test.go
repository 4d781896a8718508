package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.ObserveEvent(KindAck, 0, time.Now())
	metrics.ObserveEvent(KindFill, 0, time.Now())
	metrics.ObserveEvent(KindFill, 0, time.Now())
	metrics.IncRoutingReject()
	metrics.IncInvalidTransition()
	metrics.IncOrderSubmitted()
	metrics.ObserveQuoteCycle(2 * time.Millisecond)
	metrics.ObserveQuoteCycle(4 * time.Millisecond)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Acks)
	assert.Equal(t, uint64(2), snap.Fills)
	assert.Equal(t, uint64(1), snap.RoutingRejects)
	assert.Equal(t, uint64(1), snap.InvalidTransitions)
	assert.Equal(t, uint64(1), snap.OrdersSubmitted)
	assert.Equal(t, uint64(2), snap.QuoteCycles)
	assert.Equal(t, uint64(2), snap.QuoteLatency.Count)
	assert.Equal(t, 2*time.Millisecond, snap.QuoteLatency.Min)
	assert.Equal(t, 4*time.Millisecond, snap.QuoteLatency.Max)
	assert.Equal(t, 3*time.Millisecond, snap.QuoteLatency.Avg)
}

func TestMetricsEventLatency(t *testing.T) {
	metrics := NewMetrics()

	now := time.Now()
	metrics.ObserveEvent(KindFill, now.Add(-time.Millisecond).UnixMicro(), now)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.EventLatency.Count)
	assert.InDelta(t, float64(time.Millisecond), float64(snap.EventLatency.Max), float64(100*time.Microsecond))
}

func TestMetricsNilSafe(t *testing.T) {
	var metrics *Metrics

	assert.NotPanics(t, func() {
		metrics.ObserveEvent(KindAck, 0, time.Now())
		metrics.IncRoutingReject()
		metrics.IncQueueDrop()
		metrics.IncDisconnectCancel()
		metrics.IncExpired()
		metrics.IncInvalidTransition()
		metrics.IncOrderSubmitted()
		metrics.ObserveQuoteCycle(time.Millisecond)
		metrics.Snapshot()
	})
}

func TestMetricsConcurrent(t *testing.T) {
	metrics := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				metrics.ObserveEvent(KindFill, 0, time.Now())
				metrics.ObserveQuoteCycle(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(8000), snap.Fills)
	assert.Equal(t, uint64(8000), snap.QuoteCycles)
}

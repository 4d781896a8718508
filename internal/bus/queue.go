package bus

import (
	"context"
	"sync/atomic"

	"main/pkg/exception"
)

// Queue is a bounded, non-blocking event queue. The router owns one per
// registered adapter, which makes event ordering and backpressure explicit
// instead of implicit in whichever thread invokes a callback.
type Queue[T any] struct {
	ch     chan T
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{ch: make(chan T, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue[T]) TryPublish(e T) error {
	if q.closed.Load() {
		return exception.ErrOrderQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return exception.ErrOrderQueueFull
	}
}

// Close stops the queue from accepting new events. Events already queued
// are still delivered to the consumer.
func (q *Queue[T]) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue[T]) Run(ctx context.Context, handler func(T)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}

// Len returns the number of queued events.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

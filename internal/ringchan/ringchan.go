// Package ringchan provides a bounded channel that never blocks producers.
//
// The BLE event loop hands power values to slower consumers (terminal, Hue
// bridge) through a Ring: when a consumer falls behind, the oldest values are
// overwritten, so it always catches up on the most recent readings.
package ringchan

import (
	"context"
	"sync"
	"sync/atomic"
)

// Ring is a bounded channel-like buffer with overwrite-oldest semantics.
//
// Any number of goroutines may Send; readers use C, Receive or Drain.
type Ring[T any] struct {
	ch chan T

	mu     sync.Mutex // serializes writers so drop-then-push stays atomic
	closed bool

	written     atomic.Int64
	overwritten atomic.Int64
	processed   atomic.Int64
}

// Metrics is a snapshot of Ring counters.
type Metrics struct {
	Written     int64
	Overwritten int64
	Processed   int64 // counted by Receive and Drain only
}

// New creates a Ring holding up to capacity values.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &Ring[T]{ch: make(chan T, capacity)}
}

// Send inserts v, discarding the oldest value if the buffer is full.
// It reports whether a value was discarded. Send after Close is a no-op.
func (r *Ring[T]) Send(v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	dropped := false
	select {
	case r.ch <- v:
	default:
		select {
		case <-r.ch:
			r.overwritten.Add(1)
			dropped = true
		default:
		}
		r.ch <- v
	}
	r.written.Add(1)
	return dropped
}

// C returns the receive side. Reads through it are not counted as processed.
func (r *Ring[T]) C() <-chan T {
	return r.ch
}

// Receive blocks until a value is available, the ring is closed or ctx is
// done. ok is false in the last two cases.
func (r *Ring[T]) Receive(ctx context.Context) (v T, ok bool) {
	select {
	case v, ok = <-r.ch:
		if ok {
			r.processed.Add(1)
		}
		return v, ok
	case <-ctx.Done():
		var zero T
		return zero, false
	}
}

// Drain removes and returns every buffered value without blocking.
func (r *Ring[T]) Drain() []T {
	var out []T
	for {
		select {
		case v, ok := <-r.ch:
			if !ok {
				return out
			}
			r.processed.Add(1)
			out = append(out, v)
		default:
			return out
		}
	}
}

// Len returns the number of buffered values.
func (r *Ring[T]) Len() int {
	return len(r.ch)
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return cap(r.ch)
}

// Close closes the receive side. Buffered values can still be read.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.closed {
		r.closed = true
		close(r.ch)
	}
}

// Metrics returns the current counters.
func (r *Ring[T]) Metrics() Metrics {
	return Metrics{
		Written:     r.written.Load(),
		Overwritten: r.overwritten.Load(),
		Processed:   r.processed.Load(),
	}
}

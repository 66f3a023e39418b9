// Package ringchan provides a bounded channel that drops the oldest value
// instead of blocking the producer.
package ringchan

import "sync/atomic"

// RingChannel wraps a buffered channel. Send never blocks: when the buffer
// is full the oldest element is discarded.
//
//	rc := ringchan.New[int](3)
//	for i := 0; i < 10; i++ {
//	    rc.Send(i)
//	}
//	rc.Close()
//	for v := range rc.C() {
//	    fmt.Println(v) // 7, 8, 9
//	}
type RingChannel[T any] struct {
	ch      chan T
	written atomic.Int64
	dropped atomic.Int64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest value if the buffer is full.
// It reports whether a value was dropped.
func (rc *RingChannel[T]) Send(v T) bool {
	for {
		select {
		case rc.ch <- v:
			rc.written.Add(1)
			return false
		default:
		}

		// Full: make room. A concurrent reader may have beaten us to it.
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
		default:
		}

		select {
		case rc.ch <- v:
			rc.written.Add(1)
			return true
		default:
			// Another producer took the slot; try again.
		}
	}
}

// Len returns the number of buffered values.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the channel. Send panics afterwards.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Stats returns the number of values written and dropped so far.
func (rc *RingChannel[T]) Stats() (written, dropped int64) {
	return rc.written.Load(), rc.dropped.Load()
}

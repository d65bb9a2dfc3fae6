package engine

import "sync/atomic"

// Clock issues request sequence numbers.
//
// Every fetch takes a seq from its cache's clock before the request is sent.
// The response is applied only if that seq is still the clock's Current()
// value when it arrives; anything newer issued in between makes it stale.
// Bumping the clock without sending a request invalidates everything in flight.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// IsLatest reports whether seq is the most recently issued number.
func (c *Clock) IsLatest(seq int64) bool {
	return c.seq.Load() == seq
}

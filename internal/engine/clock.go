package engine

import "sync/atomic"

// Clock is a monotonic logical counter.
//
// The store uses one clock to number async validation runs (a run's
// result applies only if its number is still the field's latest) and
// another to stamp observer records.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

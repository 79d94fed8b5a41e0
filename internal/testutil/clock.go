package testutil

import (
	"slices"
	"sync"
	"time"
)

// ManualClock is a fake timer source for deterministic debounce tests.
//
// Its AfterFunc method matches engine.AfterFunc. Callbacks never run on
// their own: Advance moves the clock forward and runs every callback that
// came due, in due order, on the calling goroutine.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
// Callbacks run with the mutex released, so they may schedule new timers.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers []*manualTimer
}

type manualTimer struct {
	id  int
	due time.Duration
	fn  func()
}

// NewManualClock creates a manual clock at time zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// AfterFunc registers fn to run once the clock has advanced by d.
// The returned stop function reports whether it removed the timer before
// it ran.
func (c *ManualClock) AfterFunc(d time.Duration, fn func()) func() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &manualTimer{id: c.nextID, due: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		i := slices.Index(c.timers, t)
		if i < 0 {
			return false
		}
		c.timers = slices.Delete(c.timers, i, i+1)
		return true
	}
}

// Advance moves the clock forward by d and runs every timer due by then.
// Timers scheduled by a callback run too if they fall due within d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.popDue(target)
		if t == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = t.due
		c.mu.Unlock()

		t.fn()
	}
}

// popDue removes and returns the earliest timer due by target.
// Ties run in registration order.
func (c *ManualClock) popDue(target time.Duration) *manualTimer {
	best := -1
	for i, t := range c.timers {
		if t.due > target {
			continue
		}
		if best < 0 || t.due < c.timers[best].due ||
			(t.due == c.timers[best].due && t.id < c.timers[best].id) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := c.timers[best]
	c.timers = slices.Delete(c.timers, best, best+1)
	return t
}

// Now returns the time elapsed since the clock was created.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Pending returns the number of timers that have not run or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

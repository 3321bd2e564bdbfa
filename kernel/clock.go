package kernel

import (
	"context"
	"sync/atomic"
	"time"
)

// Clock is a monotonic use counter.
//
// The engine advances it once per displayed frame. The store stamps retired
// chains and last-use times with it, so every age in the system is measured in
// clock ticks rather than wall time.
type Clock struct {
	ticks atomic.Uint64
}

// NewClock creates a clock starting at tick 1.
func NewClock() *Clock {
	c := &Clock{}
	c.ticks.Store(1)
	return c
}

// Now returns the current tick.
func (c *Clock) Now() uint64 {
	if c == nil {
		return 0
	}
	return c.ticks.Load()
}

// Advance moves the clock forward by one tick and returns the new tick.
func (c *Clock) Advance() uint64 {
	if c == nil {
		return 0
	}
	return c.ticks.Add(1)
}

// Since returns the number of ticks elapsed after stamp.
func (c *Clock) Since(stamp uint64) uint64 {
	now := c.Now()
	if stamp >= now {
		return 0
	}
	return now - stamp
}

// StartTick advances the clock every d until ctx is done.
// It is used when no render loop drives the clock (headless producers, tests).
func (c *Clock) StartTick(ctx context.Context, d time.Duration) {
	if c == nil || d <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				c.ticks.Add(1)
			}
		}
	}()
}

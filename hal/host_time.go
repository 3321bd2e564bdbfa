//go:build !tinygo

package hal

import (
	"sync/atomic"
	"time"
)

// hostTime is advanced by the runner that owns it.
type hostTime struct {
	elapsed atomic.Int64
	last    time.Time
}

func (t *hostTime) Elapsed() time.Duration { return time.Duration(t.elapsed.Load()) }

// step adds a fixed d.
func (t *hostTime) step(d time.Duration) {
	t.elapsed.Add(int64(d))
}

// stepWall adds the wall time since the previous call.
func (t *hostTime) stepWall() {
	now := time.Now()
	if !t.last.IsZero() {
		t.elapsed.Add(int64(now.Sub(t.last)))
	}
	t.last = now
}

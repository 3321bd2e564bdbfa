package engine

import (
	"time"

	"specks/core/live"
	"specks/core/render"
	"specks/core/sel"
)

// Render draws every visible dataset at time t into target for view.
//
// Each call is one tick of the use clock: displayed static slots are stamped,
// the appearance pipeline brings the drawn chains up to date, and afterwards
// retired chains are reclaimed and the store is purged down to its memory
// limit.
func (e *Engine) Render(view live.ViewID, cam render.Camera, target render.DrawTarget, t float64) render.Stats {
	start := time.Now()
	c := e.ctx
	c.Clock.Advance()

	e.mu.Lock()
	guard := c.Store.Pin()
	see := drawOp(e.see)
	e.renderer.Clear(target)

	var st render.Stats
	for _, d := range e.datasets {
		if d.Hidden {
			continue
		}
		head, ts := e.frame(d, view, t)
		if head == nil {
			continue
		}
		if ts >= 0 {
			c.Store.MarkDisplayed(d.ID, ts)
		}
		d.Look.Prepare(head)
		st.Add(e.renderer.Render(target, cam, head, see))
		if d.isLive() {
			d.src.Draw(live.DrawContext{View: view, Time: t, Target: target, Camera: cam})
		}
	}
	guard.Release()
	e.mu.Unlock()

	c.Metrics.Reclaimed(c.Store.Reclaim())
	if e.memLimit > 0 {
		c.Metrics.Purged(c.Store.PurgeTo(e.memLimit))
	}
	c.Metrics.Store(c.Store.LiveBytes(), c.Store.ScrapLen())
	_, reuses, _ := c.Arena.Stats()
	e.mu.Lock()
	c.Metrics.ArenaReused(reuses - e.reuses)
	e.reuses = reuses
	e.mu.Unlock()
	c.Metrics.Rendered(time.Since(start).Seconds(), st.Drawn, st.Culled, st.Batches)
	return st
}

// drawOp adds the threshold requirement to the user's predicate. A query
// that names the threshold bit itself is left alone.
func drawOp(see sel.Op) sel.Op {
	if see.Mode == sel.ModeNone {
		return see
	}
	b := sel.Mask(1) << sel.ThresholdBit
	if see.Wanted&b == 0 {
		see.Wanted |= b
		see.Wanton |= b
	}
	return see
}

package live

import (
	"fmt"
	"sort"
	"sync"

	"specks/core/store"
	"specks/kernel"
)

// BuildMode selects where snapshot geometry is built.
type BuildMode uint8

const (
	// BuildLocked builds inside the index lock. Suited to small synchronous
	// sources where the copy is cheaper than the extra handoff.
	BuildLocked BuildMode = iota
	// BuildDetached takes the frame reference under the lock, builds outside
	// it and publishes with an atomic swap, so lock hold time does not depend
	// on frame size.
	BuildDetached
)

func (m BuildMode) String() string {
	if m == BuildDetached {
		return "detached"
	}
	return "locked"
}

// ParseBuildMode resolves "locked" or "detached".
func ParseBuildMode(s string) (BuildMode, error) {
	switch s {
	case "", "locked":
		return BuildLocked, nil
	case "detached":
		return BuildDetached, nil
	}
	return 0, fmt.Errorf("live: unknown build mode %q", s)
}

// Outcome says how a GetFrame request was served.
type Outcome uint8

const (
	OutcomeMiss Outcome = iota
	OutcomeHit
	OutcomeRebuild
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeRebuild:
		return "rebuild"
	default:
		return "miss"
	}
}

// Gate is the handoff between one producer and any number of views.
//
// The producer appends immutable frames to a growable index under mu; that
// is the only state shared with readers. Each view owns two alternating
// snapshot buffers: a rebuild writes into the buffer not returned last time,
// so the previous snapshot stays intact for its holder until the view's next
// rebuild after that.
type Gate struct {
	mode   BuildMode
	arena  *store.Arena
	retain int

	mu     sync.Mutex
	frames []*Frame
	tmin   float64
	tmax   float64
	gen    uint64
	seq    uint64

	vmu   sync.Mutex
	views map[ViewID]*viewState
}

type viewState struct {
	mu    sync.Mutex
	bufs  [2]*store.Specklist
	cur   int
	valid bool
	time  float64
	frame *Frame
	gen   uint64

	latest kernel.Published[store.Specklist]
}

// GateOptions configures a Gate.
type GateOptions struct {
	Mode BuildMode
	// Retain bounds the frame index; the oldest frames are dropped past it.
	// Zero keeps everything.
	Retain int
}

// NewGate creates an empty gate drawing snapshot buffers from a.
func NewGate(a *store.Arena, opts GateOptions) *Gate {
	return &Gate{
		mode:   opts.Mode,
		arena:  a,
		retain: opts.Retain,
		views:  make(map[ViewID]*viewState),
	}
}

// Mode returns the build mode.
func (g *Gate) Mode() BuildMode { return g.mode }

// Append adds a frame to the index. Frames must arrive in increasing time
// order; the lock is held only for the append itself.
func (g *Gate) Append(f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := len(g.frames); n > 0 && f.Time <= g.frames[n-1].Time {
		return fmt.Errorf("%w: frame time %g not after %g", ErrMalformedRecord, f.Time, g.frames[n-1].Time)
	}
	g.frames = append(g.frames, f)
	if len(g.frames) == 1 {
		g.tmin = f.Time
	}
	g.tmax = f.Time
	if g.retain > 0 && len(g.frames) > g.retain {
		g.frames[0] = nil
		g.frames = g.frames[1:]
		g.tmin = g.frames[0].Time
	}
	return nil
}

// Reset drops every frame. Snapshots already handed out stay valid; the next
// request for any view rebuilds.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.frames)
	g.frames = g.frames[:0]
	g.tmin, g.tmax = 0, 0
	g.gen++
}

// Len returns the number of indexed frames.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.frames)
}

// TimeRange returns the time span of the indexed frames.
func (g *Gate) TimeRange() (tmin, tmax float64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tmin, g.tmax, len(g.frames) > 0
}

func (g *Gate) view(id ViewID) *viewState {
	g.vmu.Lock()
	defer g.vmu.Unlock()
	vs, ok := g.views[id]
	if !ok {
		vs = &viewState{}
		g.views[id] = vs
	}
	return vs
}

// frameAtLocked returns the latest frame at or before t.
func (g *Gate) frameAtLocked(t float64) *Frame {
	i := sort.Search(len(g.frames), func(i int) bool { return g.frames[i].Time > t })
	if i > 0 {
		i--
	}
	return g.frames[i]
}

// GetFrame returns the snapshot of view at time t.
//
// Repeated requests for an unchanged t return the identical snapshot without
// rebuilding. A nil snapshot with a nil error means no frame has arrived yet.
// A t outside the indexed range aborts the request with
// ErrConcurrencyViolation.
func (g *Gate) GetFrame(view ViewID, t float64) (*store.Specklist, Outcome, error) {
	vs := g.view(view)
	vs.mu.Lock()
	defer vs.mu.Unlock()

	g.mu.Lock()
	if len(g.frames) == 0 {
		g.mu.Unlock()
		return nil, OutcomeMiss, nil
	}
	if t < g.tmin || t > g.tmax {
		tmin, tmax := g.tmin, g.tmax
		g.mu.Unlock()
		return nil, OutcomeMiss, fmt.Errorf("%w: time %g outside [%g, %g]", ErrConcurrencyViolation, t, tmin, tmax)
	}
	f := g.frameAtLocked(t)
	gen := g.gen
	if vs.valid && vs.time == t && vs.frame == f && vs.gen == gen {
		snap := vs.bufs[vs.cur]
		g.mu.Unlock()
		return snap, OutcomeHit, nil
	}
	g.seq++
	seq := g.seq

	next := 1 - vs.cur
	var snap *store.Specklist
	if g.mode == BuildLocked {
		snap = f.fill(g.arena, vs.bufs[next], seq)
		g.mu.Unlock()
	} else {
		g.mu.Unlock()
		snap = f.fill(g.arena, vs.bufs[next], seq)
	}

	vs.bufs[next] = snap
	vs.cur = next
	vs.valid = true
	vs.time = t
	vs.frame = f
	vs.gen = gen
	vs.latest.Publish(snap)
	return snap, OutcomeRebuild, nil
}

// Latest returns the view's most recently built snapshot without taking
// any lock.
func (g *Gate) Latest(view ViewID) (*store.Specklist, uint64) {
	return g.view(view).latest.Load()
}

// Release returns a view's buffers to the arena. The caller guarantees no
// holder still uses them.
func (g *Gate) Release(view ViewID) {
	g.vmu.Lock()
	vs, ok := g.views[view]
	delete(g.views, view)
	g.vmu.Unlock()
	if !ok {
		return
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	for i, b := range vs.bufs {
		if b != nil {
			g.arena.PutChain(b)
			vs.bufs[i] = nil
		}
	}
	vs.valid = false
}

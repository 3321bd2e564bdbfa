package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"specks/core/live"
	"specks/core/look"
	"specks/core/render"
	"specks/core/sel"
	"specks/core/store"
)

// DefaultView is the view used by callers that do not name one.
const DefaultView live.ViewID = 0

// Engine is the consumer API over datasets, selections and rendering.
//
// Engine methods are safe for concurrent use, but they are meant to be called
// from the render loop; producers only ever talk to their own sources.
type Engine struct {
	ctx      *Context
	renderer *render.Renderer
	memLimit int64

	mu       sync.Mutex
	datasets []*Dataset
	see      sel.Op
	reuses   int
}

// New creates an engine rendering with p. memLimit caps the store's live
// bytes; zero disables purging.
func New(ctx *Context, p render.Params, memLimit int64) *Engine {
	if ctx == nil {
		ctx = NewContext(Options{})
	}
	return &Engine{
		ctx:      ctx,
		renderer: render.NewRenderer(p),
		memLimit: memLimit,
		see:      sel.All,
	}
}

// Context returns the engine's shared state.
func (e *Engine) Context() *Context { return e.ctx }

// Renderer returns the point renderer.
func (e *Engine) Renderer() *render.Renderer { return e.renderer }

// AddDataset registers a dataset with the given attribute names and returns
// its id. Names are unique.
func (e *Engine) AddDataset(name string, attrs []string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.datasets {
		if strings.EqualFold(d.Name, name) {
			return -1, fmt.Errorf("engine: dataset %q already exists", name)
		}
	}
	id := len(e.datasets)
	e.datasets = append(e.datasets, newDataset(id, name, attrs))
	e.ctx.Log.Debug("dataset added", "dataset", name, "id", id, "attrs", len(attrs))
	return id, nil
}

// Datasets returns the registered datasets in id order.
func (e *Engine) Datasets() []*Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Dataset(nil), e.datasets...)
}

// Lookup finds a dataset by name.
func (e *Engine) Lookup(name string) (*Dataset, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, d := range e.datasets {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return nil, false
}

func (e *Engine) dataset(id int) (*Dataset, error) {
	if id < 0 || id >= len(e.datasets) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDataset, id)
	}
	return e.datasets[id], nil
}

// Load installs a prebuilt chain at (dataset, timestep). Chains loaded into
// the same slot accumulate.
func (e *Engine) Load(dataset, timestep int, list *store.Specklist) error {
	e.mu.Lock()
	_, err := e.dataset(dataset)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.ctx.Store.Insert(dataset, timestep, list)
}

// LoadText decodes text frames from r and installs them as consecutive
// timesteps after the dataset's last one. Malformed records are reported
// once and skipped. It returns the number of timesteps loaded.
func (e *Engine) LoadText(dataset int, r io.Reader) (int, error) {
	e.mu.Lock()
	d, err := e.dataset(dataset)
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	dec := live.NewTextDecoder(r)
	dec.OnMalformed = func(err error) { e.ctx.report(d.Name, err) }

	base := e.ctx.Store.Timesteps(dataset)
	n := 0
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, fmt.Errorf("engine: load %s: %w", d.Name, err)
		}
		if err := e.ctx.Store.Insert(dataset, base+n, f.Specklist(e.ctx.Arena, uint64(n+1))); err != nil {
			return n, err
		}
		n++
	}
	e.ctx.Log.Info("dataset loaded", "dataset", d.Name, "timesteps", n)
	return n, nil
}

// Bind attaches src to a dataset and enables it. A previously bound source
// is closed.
func (e *Engine) Bind(dataset int, src live.Source) error {
	e.mu.Lock()
	d, err := e.dataset(dataset)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	old := d.src
	d.src, d.state = src, live.Enabled
	clear(d.last)
	d.paints = nil
	if src == nil {
		d.state = live.Absent
	}
	e.mu.Unlock()
	if old != nil && old != src {
		return old.Close()
	}
	return nil
}

// SetSourceState moves a dataset's source between absent, disabled and
// enabled. Disabling pauses polling but keeps the source and the frames it
// already delivered; Absent closes and unbinds it.
func (e *Engine) SetSourceState(ctx context.Context, dataset int, st live.State) error {
	e.mu.Lock()
	d, err := e.dataset(dataset)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	src := d.src
	if src == nil {
		e.mu.Unlock()
		if st == live.Absent {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNoSource, d.Name)
	}
	prev := d.state
	d.state = st
	if st == live.Absent {
		d.src = nil
		clear(d.last)
		d.paints = nil
	}
	e.mu.Unlock()

	e.ctx.Log.Info("source state", "dataset", d.Name, "from", prev, "to", st)
	switch st {
	case live.Absent:
		return src.Close()
	case live.Disabled:
		return src.Control(ctx, []string{"pause"})
	case live.Enabled:
		return src.Control(ctx, []string{"resume"})
	}
	return fmt.Errorf("%w: state %d", ErrBadSetting, st)
}

// Control forwards a text command to a dataset's source.
func (e *Engine) Control(ctx context.Context, dataset int, args []string) error {
	e.mu.Lock()
	d, err := e.dataset(dataset)
	var src live.Source
	if err == nil {
		src = d.src
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("%w: %s", ErrNoSource, d.Name)
	}
	return src.Control(ctx, args)
}

// TimeRange returns the span of times a dataset can show. Static datasets
// span their timestep indices.
func (e *Engine) TimeRange(dataset int) (tmin, tmax float64, ok bool) {
	e.mu.Lock()
	d, err := e.dataset(dataset)
	e.mu.Unlock()
	if err != nil {
		return 0, 0, false
	}
	return e.timeRange(d)
}

func (e *Engine) timeRange(d *Dataset) (float64, float64, bool) {
	if d.isLive() {
		return d.src.TimeRange()
	}
	n := e.ctx.Store.Timesteps(d.ID)
	if n == 0 {
		return 0, 0, false
	}
	return 0, float64(n - 1), true
}

// GetFrame returns the chain a dataset shows at time t in the default view.
func (e *Engine) GetFrame(dataset int, t float64) (*store.Specklist, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return nil, err
	}
	head, _ := e.frame(d, DefaultView, t)
	return head, nil
}

// frame resolves the chain for d at t. t is clamped into the dataset's time
// range. A live source without a fresh snapshot falls back to the last good
// one. The timestep is -1 for live datasets.
func (e *Engine) frame(d *Dataset, view live.ViewID, t float64) (*store.Specklist, int) {
	tmin, tmax, ok := e.timeRange(d)
	if !ok {
		if d.isLive() {
			return d.last[view].list, -1
		}
		return nil, -1
	}
	t = min(max(t, tmin), tmax)

	if d.isLive() {
		last := d.last[view]
		snap := d.src.GetFrame(view, t)
		if snap == nil {
			return last.list, -1
		}
		if snap != last.list || snap.Seq != last.seq {
			d.repaint(snap)
			d.last[view] = snapshot{list: snap, seq: snap.Seq}
		}
		return snap, -1
	}
	ts := int(math.Floor(t))
	return e.ctx.Store.Chain(d.ID, ts), ts
}

// SetColorBy selects what drives a dataset's color:
//
//	<attr> [exact] [<min> <max>]   colormap lookup; the range defaults to the data's
//	rgb565 | rgb888 | rgb          attribute named so, read as a packed pixel
//	const [#RRGGBB[AA]]            one color for every record
//	#RRGGBB[AA]                    same as const
func (e *Engine) SetColorBy(dataset int, spec string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return err
	}
	args := strings.Fields(spec)
	if len(args) == 0 {
		return fmt.Errorf("%w: empty color setting", ErrBadSetting)
	}
	p := d.Look
	switch {
	case strings.HasPrefix(args[0], "#"):
		c, err := parseColor(args[0])
		if err != nil {
			return err
		}
		p.SetConstColor(c)
		return nil
	case strings.EqualFold(args[0], "const"):
		c := p.Color().Const
		if len(args) > 1 {
			if c, err = parseColor(args[1]); err != nil {
				return err
			}
		}
		p.SetConstColor(c)
		return nil
	}

	attr, err := d.attr(args[0])
	if err != nil {
		return err
	}
	if mode, ok := look.ModeForAttr(strings.ToLower(args[0])); ok {
		if len(args) > 1 {
			return fmt.Errorf("%w: %s takes no arguments", ErrBadSetting, args[0])
		}
		p.ColorBy(attr, mode)
		return nil
	}
	mode := look.ColorLinear
	rest := args[1:]
	if len(rest) > 0 && strings.EqualFold(rest[0], "exact") {
		mode, rest = look.ColorExact, rest[1:]
	}
	switch {
	case len(rest) > 0:
		lo, hi, err := parseRange(rest)
		if err != nil {
			return err
		}
		p.SetColorRange(lo, hi)
	case mode == look.ColorLinear:
		if lo, hi, ok := e.attrRange(d, attr); ok {
			p.SetColorRange(lo, hi)
		}
	}
	p.ColorBy(attr, mode)
	return nil
}

// SetSizeBy selects what drives a dataset's luminosity:
//
//	declared | ""          the size each record was loaded with
//	<attr> [<min> <max>]   the attribute rescaled onto [0, 1]; the range
//	                       defaults to the data's
func (e *Engine) SetSizeBy(dataset int, spec string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return err
	}
	args := strings.Fields(spec)
	if len(args) == 0 || strings.EqualFold(args[0], "declared") {
		d.Look.SizeBy(store.NoAttr, 0, 0)
		return nil
	}
	attr, err := d.attr(args[0])
	if err != nil {
		return err
	}
	var lo, hi float32
	if len(args) > 1 {
		if lo, hi, err = parseRange(args[1:]); err != nil {
			return err
		}
	} else if a, b, ok := e.attrRange(d, attr); ok {
		lo, hi = a, b
	}
	d.Look.SizeBy(attr, lo, hi)
	return nil
}

// SetSizeScale sets a dataset's luminosity multiplier.
func (e *Engine) SetSizeScale(dataset int, scale float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return err
	}
	d.Look.SetSizeScale(scale)
	return nil
}

// SetThreshold tags a dataset's records whose attr lies in [tmin, tmax] with
// the threshold bit. An empty attr or "off" disables thresholding, which tags
// every record.
func (e *Engine) SetThreshold(dataset int, attr string, tmin, tmax float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return err
	}
	if a := strings.TrimSpace(attr); a == "" || strings.EqualFold(a, "off") {
		d.Look.SetThreshold(store.NoAttr, 0, 0)
		return nil
	}
	i, err := d.attr(attr)
	if err != nil {
		return err
	}
	d.Look.SetThreshold(i, tmin, tmax)
	return nil
}

// SetEmphasis scales the luminosity of a dataset's records matching the
// query terms by factor. A zero factor turns emphasis off.
func (e *Engine) SetEmphasis(dataset int, terms string, factor float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return err
	}
	op, err := sel.ParseTerms(e.ctx.Names, terms, sel.ModeUse)
	if err != nil {
		return err
	}
	d.Look.SetEmphasis(op, factor)
	return nil
}

// LoadColormap replaces a dataset's colormap with one read from r.
func (e *Engine) LoadColormap(dataset int, r io.Reader) error {
	cm, err := look.LoadColormap(r)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return err
	}
	d.Look.SetColormap(cm)
	return nil
}

// ParseSelectionExpression evaluates "DEST = SRC" or a bare query.
//
// With a destination, every record of every dataset's current data that
// matches SRC is painted with DEST; live datasets replay the paint onto later
// snapshots. A bare query becomes the draw predicate. It returns the number
// of records painted.
func (e *Engine) ParseSelectionExpression(s string) (int, error) {
	x, err := sel.ParseExpression(e.ctx.Names, s)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !x.HasDest {
		e.see = x.Src
		return 0, nil
	}
	n := 0
	for _, d := range e.datasets {
		for _, head := range e.chains(d) {
			n += paintChain(head, x)
		}
		if d.isLive() {
			d.remember(x)
		}
		d.Look.InvalidateSize()
	}
	e.ctx.Log.Debug("selection painted", "expr", s, "records", n)
	return n, nil
}

// See returns the current draw predicate.
func (e *Engine) See() sel.Op {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.see
}

// Count returns how many records of a dataset's current data match the
// query terms.
func (e *Engine) Count(dataset int, terms string) (int, error) {
	op, err := sel.ParseTerms(e.ctx.Names, terms, sel.ModeUse)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, head := range e.chains(d) {
		for l := head; l != nil; l = l.Next() {
			n += sel.Count(l.Sel[:l.Len()], op)
		}
	}
	return n, nil
}

// chains lists the data a dataset currently holds: every static timestep, or
// the last snapshot of each view for live datasets.
func (e *Engine) chains(d *Dataset) []*store.Specklist {
	var out []*store.Specklist
	if d.isLive() {
		for _, l := range d.last {
			if l.list != nil {
				out = append(out, l.list)
			}
		}
		return out
	}
	n := e.ctx.Store.Timesteps(d.ID)
	for ts := 0; ts < n; ts++ {
		if h := e.ctx.Store.Chain(d.ID, ts); h != nil {
			out = append(out, h)
		}
	}
	return out
}

// AttrRange returns the span of attribute attr over a dataset's current data.
func (e *Engine) AttrRange(dataset int, attr string) (lo, hi float32, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	d, err := e.dataset(dataset)
	if err != nil {
		return 0, 0, false
	}
	i := d.AttrIndex(attr)
	if i < 0 {
		return 0, 0, false
	}
	return e.attrRange(d, i)
}

func (e *Engine) attrRange(d *Dataset, attr int) (lo, hi float32, ok bool) {
	lo, hi = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, head := range e.chains(d) {
		for l := head; l != nil; l = l.Next() {
			if l.IsLabels() || !l.ValidAttr(attr) {
				continue
			}
			for i := 0; i < l.Len(); i++ {
				v := l.AttrValue(i, attr)
				if v != v {
					continue
				}
				lo, hi = min(lo, v), max(hi, v)
				ok = true
			}
		}
	}
	if !ok {
		return 0, 0, false
	}
	return lo, hi, true
}

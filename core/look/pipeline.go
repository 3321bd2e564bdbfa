package look

import (
	"sync"

	"specks/core/sel"
	"specks/core/store"
)

// Pipeline holds the appearance settings of one dataset and applies them to
// specklists lazily.
//
// Each setting group has a sequence counter. Setters bump the counter; Prepare
// recomputes a list only when the list's cached sequence differs, so
// unchanged lists cost one comparison per frame.
type Pipeline struct {
	mu sync.Mutex

	color      ColorParams
	base       *Colormap
	brightness float32
	gamma      float32

	size   SizeParams
	thresh ThreshParams

	colorSeq  uint64
	sizeSeq   uint64
	threshSeq uint64
}

// Stats counts the lists recomputed by one Prepare call.
type Stats struct {
	Lists      int
	Recolored  int
	Resized    int
	Thresholds int
}

// NewPipeline returns a pipeline painting records white at declared size.
func NewPipeline() *Pipeline {
	base := DefaultColormap(256)
	return &Pipeline{
		color: ColorParams{
			Mode:  ColorConst,
			Attr:  store.NoAttr,
			Const: 0xFFFFFFFF,
			Max:   1,
			Map:   base,
			Alpha: 0xFF,
		},
		base:       base,
		brightness: 1,
		gamma:      1,
		size:       SizeParams{Mode: SizeDeclared, Attr: store.NoAttr, Scale: 1},
		thresh:     ThreshParams{Attr: store.NoAttr},
		colorSeq:   1,
		sizeSeq:    1,
		threshSeq:  1,
	}
}

// ColorBy drives color from attribute attr using mode.
func (p *Pipeline) ColorBy(attr int, mode ColorMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.color.Attr = attr
	p.color.Mode = mode
	p.colorSeq++
}

// SetConstColor paints every record with c.
func (p *Pipeline) SetConstColor(c uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.color.Mode = ColorConst
	p.color.Const = c
	p.colorSeq++
}

// SetColorRange sets the linear colormap range.
func (p *Pipeline) SetColorRange(cmin, cmax float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.color.Min, p.color.Max = cmin, cmax
	p.colorSeq++
}

// SetColormap replaces the colormap table.
func (p *Pipeline) SetColormap(c *Colormap) {
	if c == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = c
	p.color.Map = c.Adjusted(p.brightness, p.gamma)
	p.colorSeq++
}

// SetBrightness sets the brightness and gamma mapping applied to the colormap.
func (p *Pipeline) SetBrightness(brightness, gamma float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.brightness, p.gamma = brightness, gamma
	p.color.Map = p.base.Adjusted(brightness, gamma)
	p.colorSeq++
}

// SetAlpha sets the alpha written into every color.
func (p *Pipeline) SetAlpha(a uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.color.Alpha = a
	p.colorSeq++
}

// SizeBy drives luminosity from attr rescaled over [smin, smax].
// A negative attr falls back to declared sizes.
func (p *Pipeline) SizeBy(attr int, smin, smax float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size.Attr = attr
	p.size.Mode = SizeAttr
	if attr < 0 {
		p.size.Mode = SizeDeclared
	}
	p.size.Min, p.size.Max = smin, smax
	p.sizeSeq++
}

// SetSizeScale sets the luminosity multiplier.
func (p *Pipeline) SetSizeScale(scale float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size.Scale = scale
	p.sizeSeq++
}

// SetEmphasis multiplies the luminosity of records matching op by factor.
func (p *Pipeline) SetEmphasis(op sel.Op, factor float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size.Emphasis = op
	p.size.EmphasisFactor = factor
	p.sizeSeq++
}

// SetThreshold tags records with attr in [tmin, tmax]. A negative attr
// disables thresholding.
func (p *Pipeline) SetThreshold(attr int, tmin, tmax float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.thresh = ThreshParams{Enabled: attr >= 0, Attr: attr, Min: tmin, Max: tmax}
	p.threshSeq++
}

// InvalidateSize forces luminosity to be recomputed on the next Prepare.
// Selection paints call it since emphasis reads selection bits; color and
// threshold tags are left alone.
func (p *Pipeline) InvalidateSize() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sizeSeq++
}

// Sequences returns the current color, size and threshold counters.
func (p *Pipeline) Sequences() (color, size, thresh uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.colorSeq, p.sizeSeq, p.threshSeq
}

// Color returns the current color parameters.
func (p *Pipeline) Color() ColorParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.color
}

// Prepare brings every list of the chain up to date. Threshold runs before
// resize because emphasis may select on the threshold bit.
func (p *Pipeline) Prepare(head *store.Specklist) Stats {
	p.mu.Lock()
	color, size, thresh := p.color, p.size, p.thresh
	cs, ss, ts := p.colorSeq, p.sizeSeq, p.threshSeq
	p.mu.Unlock()

	var st Stats
	for l := head; l != nil; l = l.Next() {
		st.Lists++
		tagged := false
		if l.ThreshSeq != ts {
			Threshold(l, thresh)
			l.ThreshSeq = ts
			st.Thresholds++
			tagged = true
		}
		if l.SizeSeq != ss || tagged {
			Resize(l, size)
			l.SizeSeq = ss
			st.Resized++
		}
		if l.ColorSeq != cs {
			Recolor(l, color)
			l.ColorSeq = cs
			st.Recolored++
		}
	}
	return st
}

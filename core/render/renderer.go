package render

import (
	"math"
	"math/rand"

	"specks/core/sel"
	"specks/core/store"
)

// Params configures the point pass.
type Params struct {
	Falloff Falloff
	// K scales luminosity: lum = K * factor / distance².
	K float32
	// Knee is the switch distance for FalloffKnee.
	Knee float32
	// MaxPointSize clamps the quantized pixel size.
	MaxPointSize int
	// MinLum is the visibility threshold; dimmer points are kept with
	// probability lum/MinLum and drawn at size 1.
	MinLum float32
	// BatchCap bounds one draw call; the target's MaxBatch lowers it further.
	BatchCap int

	Background Color
	// Fade multiplies every point's alpha, in [0, 1].
	Fade float32
	// Seed makes the stochastic cull repeat from frame to frame.
	Seed int64
}

// DefaultParams returns the stock renderer configuration.
func DefaultParams() Params {
	return Params{
		Falloff:      FalloffSpherical,
		K:            1,
		Knee:         1,
		MaxPointSize: 16,
		MinLum:       1,
		BatchCap:     512,
		Background:   RGB(0, 0, 0),
		Fade:         1,
		Seed:         1,
	}
}

// Stats counts what one Render call did.
type Stats struct {
	Seen    int // records passing the selection
	Drawn   int
	Culled  int // dropped by the sub-pixel cull
	Clipped int // outside the view volume
	Batches int
	Labels  int
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Seen += o.Seen
	s.Drawn += o.Drawn
	s.Culled += o.Culled
	s.Clipped += o.Clipped
	s.Batches += o.Batches
	s.Labels += o.Labels
}

// Renderer is a stateless per-frame point pass.
//
// Create it once and reuse it; the per-size scratch buffers are kept between
// frames so the hot loop does not allocate.
type Renderer struct {
	Params Params

	buckets [][]PointVertex
	rng     *rand.Rand
}

// NewRenderer returns a renderer with p applied over sane defaults.
func NewRenderer(p Params) *Renderer {
	d := DefaultParams()
	if p.MaxPointSize <= 0 {
		p.MaxPointSize = d.MaxPointSize
	}
	if p.BatchCap <= 0 {
		p.BatchCap = d.BatchCap
	}
	if p.MinLum <= 0 {
		p.MinLum = d.MinLum
	}
	if p.K == 0 {
		p.K = d.K
	}
	if p.Fade <= 0 || p.Fade > 1 {
		p.Fade = d.Fade
	}
	return &Renderer{Params: p, rng: rand.New(rand.NewSource(p.Seed))}
}

// Blend returns the compositing policy implied by the current parameters.
// A pure black background draws additively; translucent points never write
// depth, and depth testing stays on so opaque geometry still occludes.
func (r *Renderer) Blend() BlendState {
	b := BlendState{Mode: BlendAlpha, DepthTest: true}
	if r.Params.Background.IsBlack() {
		b.Mode = BlendAdditive
	}
	translucent := b.Mode == BlendAdditive || r.Params.Fade < 1
	b.DepthWrite = !translucent
	return b
}

// Clear fills the target with the background color.
func (r *Renderer) Clear(t DrawTarget) {
	if r == nil || t == nil {
		return
	}
	t.Clear(r.Params.Background)
}

// Render draws every record of the chain at head that matches see.
func (r *Renderer) Render(t DrawTarget, cam Camera, head *store.Specklist, see sel.Op) Stats {
	var st Stats
	if r == nil || t == nil || head == nil || see.Mode == sel.ModeNone {
		return st
	}
	w, h := t.Size()
	if w <= 0 || h <= 0 {
		return st
	}

	aspect := float32(1)
	if h != 0 {
		aspect = float32(w) / float32(h)
	}
	view := cam.View()
	proj := cam.Projection(aspect)
	mvp := Mat4Mul(proj, view)
	fwd := cam.Forward()

	r.rng.Seed(r.Params.Seed)
	r.prepareBuckets(t)
	t.SetBlend(r.Blend())

	labels, _ := t.(LabelTarget)

	for l := head; l != nil; l = l.Next() {
		n := l.Len()
		for i := 0; i < n; i++ {
			if i < len(l.Sel) && !sel.Matches(l.Sel[i], see) {
				continue
			}
			st.Seen++

			x, y, z := l.Position(i)
			clip := mvp.MulPoint(x, y, z)
			if clip.W <= 0 {
				st.Clipped++
				continue
			}
			inv := 1 / clip.W
			nx, ny, nz := clip.X*inv, clip.Y*inv, clip.Z*inv
			if nx < -1 || nx > 1 || ny < -1 || ny > 1 || nz < -1 || nz > 1 {
				st.Clipped++
				continue
			}
			sx := (nx + 1) * 0.5 * float32(w)
			sy := (1 - ny) * 0.5 * float32(h)
			depth := (nz + 1) * 0.5

			if l.IsLabels() {
				if labels != nil {
					labels.DrawLabel(int(sx), int(sy), l.Titles[i], Unpack(fadeAlpha(l.RGBA[i], r.Params.Fade)))
					st.Labels++
				}
				continue
			}

			rel := V3(x, y, z).Sub(cam.Position)
			lum := r.luminosity(l, i, Dot(rel, rel), Dot(rel, fwd))
			size, ok := r.quantize(lum)
			if !ok {
				st.Culled++
				continue
			}

			b := r.buckets[size]
			b = append(b, PointVertex{X: sx, Y: sy, Z: depth, RGBA: fadeAlpha(l.RGBA[i], r.Params.Fade)})
			if len(b) == cap(b) {
				t.DrawPoints(size, b)
				st.Batches++
				b = b[:0]
			}
			r.buckets[size] = b
			st.Drawn++
		}
	}

	for size, b := range r.buckets {
		if len(b) == 0 {
			continue
		}
		t.DrawPoints(size, b)
		st.Batches++
		r.buckets[size] = b[:0]
	}
	return st
}

func (r *Renderer) luminosity(l *store.Specklist, i int, d2, z float32) float32 {
	factor := l.Size[i]
	if i < len(l.Lum) {
		factor = l.Lum[i]
	}
	div := r.Params.Falloff.distanceFactor(d2, z, r.Params.Knee)
	if div <= 1e-12 {
		div = 1e-12
	}
	return r.Params.K * factor / div
}

// quantize maps luminosity to a pixel-size bucket. It reports false for a
// point removed by the sub-pixel cull.
func (r *Renderer) quantize(lum float32) (int, bool) {
	if !(lum > 0) {
		return 0, false
	}
	if lum < r.Params.MinLum {
		if r.rng.Float32()*r.Params.MinLum >= lum {
			return 0, false
		}
		return 1, true
	}
	size := int(math.Ceil(math.Sqrt(float64(lum))))
	if size < 1 {
		size = 1
	}
	if size > r.Params.MaxPointSize {
		size = r.Params.MaxPointSize
	}
	return size, true
}

func (r *Renderer) prepareBuckets(t DrawTarget) {
	batch := r.Params.BatchCap
	if m := t.MaxBatch(); m > 0 && m < batch {
		batch = m
	}
	if batch < 1 {
		batch = 1
	}
	if len(r.buckets) != r.Params.MaxPointSize+1 {
		r.buckets = make([][]PointVertex, r.Params.MaxPointSize+1)
	}
	for i := range r.buckets {
		if cap(r.buckets[i]) != batch {
			r.buckets[i] = make([]PointVertex, 0, batch)
		} else {
			r.buckets[i] = r.buckets[i][:0]
		}
	}
}

func sqrt32(v float32) float32 { return float32(math.Sqrt(float64(v))) }

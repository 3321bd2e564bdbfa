package render

// Batch is one recorded draw call.
type Batch struct {
	Size   int
	Points []PointVertex
	Blend  BlendState
}

// Label is one recorded label draw.
type Label struct {
	X, Y  int
	Text  string
	Color Color
}

// Recorder is a DrawTarget that keeps every call for inspection.
type Recorder struct {
	W, H  int
	Limit int // MaxBatch; 0 means none

	Cleared []Color
	Batches []Batch
	Labels  []Label

	blend BlendState
}

func (r *Recorder) Size() (w, h int)      { return r.W, r.H }
func (r *Recorder) MaxBatch() int         { return r.Limit }
func (r *Recorder) SetBlend(b BlendState) { r.blend = b }
func (r *Recorder) Clear(c Color)         { r.Cleared = append(r.Cleared, c) }

// DrawPoints copies pts since the renderer reuses its scratch buffers.
func (r *Recorder) DrawPoints(size int, pts []PointVertex) {
	cp := make([]PointVertex, len(pts))
	copy(cp, pts)
	r.Batches = append(r.Batches, Batch{Size: size, Points: cp, Blend: r.blend})
}

func (r *Recorder) DrawLabel(x, y int, s string, c Color) {
	r.Labels = append(r.Labels, Label{X: x, Y: y, Text: s, Color: c})
}

// Points returns the total number of recorded points.
func (r *Recorder) Points() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b.Points)
	}
	return n
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.Cleared = r.Cleared[:0]
	r.Batches = r.Batches[:0]
	r.Labels = r.Labels[:0]
}

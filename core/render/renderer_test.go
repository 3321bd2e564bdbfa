package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/sel"
	"specks/core/store"
)

// testParams puts a size-1 record at the origin at luminosity 1 for the
// default camera, which sits 3 units away.
func testParams() Params {
	p := DefaultParams()
	p.K = 9
	return p
}

func TestRenderBucketsBySize(t *testing.T) {
	l := store.NewList(0, 4)
	for _, s := range []float32{1, 4, 9, 4} {
		l.Add(0, 0, 0, s)
	}
	r := NewRenderer(testParams())
	rec := &Recorder{W: 100, H: 100}

	st := r.Render(rec, DefaultCamera(), l, sel.All)
	require.Len(t, rec.Batches, 3)
	assert.Equal(t, 4, st.Drawn)
	assert.Equal(t, 3, st.Batches)

	var sizes, counts []int
	for _, b := range rec.Batches {
		sizes = append(sizes, b.Size)
		counts = append(counts, len(b.Points))
	}
	assert.Equal(t, []int{1, 2, 3}, sizes)
	assert.Equal(t, []int{1, 2, 1}, counts)

	p := rec.Batches[0].Points[0]
	assert.InDelta(t, 50, p.X, 0.01)
	assert.InDelta(t, 50, p.Y, 0.01)
	assert.True(t, p.Z > 0 && p.Z < 1)
}

func TestRenderBatchesRespectTargetLimit(t *testing.T) {
	l := store.NewList(0, 10)
	for i := 0; i < 10; i++ {
		l.Add(0, 0, 0, 1)
	}
	r := NewRenderer(testParams())
	rec := &Recorder{W: 64, H: 64, Limit: 4}

	st := r.Render(rec, DefaultCamera(), l, sel.All)
	require.Equal(t, 3, st.Batches)
	for _, b := range rec.Batches {
		assert.LessOrEqual(t, len(b.Points), 4)
		assert.Equal(t, 1, b.Size)
	}
	assert.Equal(t, 10, rec.Points())
}

func TestRenderHonorsSelection(t *testing.T) {
	l := store.NewList(0, 4)
	for i := 0; i < 4; i++ {
		l.Add(0, 0, 0, 1)
	}
	l.Sel[1] = 1
	l.Sel[3] = 1
	r := NewRenderer(testParams())

	rec := &Recorder{W: 64, H: 64}
	st := r.Render(rec, DefaultCamera(), l, sel.Bit(0, sel.ModeUse))
	assert.Equal(t, 2, st.Seen)
	assert.Equal(t, 2, rec.Points())

	rec.Reset()
	st = r.Render(rec, DefaultCamera(), l, sel.Off)
	assert.Zero(t, st.Seen)
	assert.Empty(t, rec.Batches)
}

func TestRenderClipsOutsideView(t *testing.T) {
	l := store.NewList(0, 3)
	l.Add(0, 0, 10, 1)  // behind the camera
	l.Add(100, 0, 0, 1) // far off to the side
	l.Add(0, 0, 0, 1)
	r := NewRenderer(testParams())
	rec := &Recorder{W: 64, H: 64}

	st := r.Render(rec, DefaultCamera(), l, sel.All)
	assert.Equal(t, 2, st.Clipped)
	assert.Equal(t, 1, st.Drawn)
}

func TestRenderStochasticCull(t *testing.T) {
	const n = 2000
	l := store.NewList(0, n)
	for i := 0; i < n; i++ {
		l.Add(0, 0, 0, 0.25)
	}
	r := NewRenderer(testParams())
	rec := &Recorder{W: 64, H: 64}

	st := r.Render(rec, DefaultCamera(), l, sel.All)
	assert.Equal(t, n, st.Drawn+st.Culled)
	assert.InDelta(t, n/4, st.Drawn, n/10)
	for _, b := range rec.Batches {
		assert.Equal(t, 1, b.Size)
	}

	// The cull pattern repeats frame to frame.
	again := r.Render(&Recorder{W: 64, H: 64}, DefaultCamera(), l, sel.All)
	assert.Equal(t, st.Drawn, again.Drawn)
}

func TestRenderUsesDerivedLuminosity(t *testing.T) {
	l := store.NewList(0, 1)
	l.Add(0, 0, 0, 1)
	l.EnsureLum()[0] = 16
	r := NewRenderer(testParams())
	rec := &Recorder{W: 64, H: 64}

	r.Render(rec, DefaultCamera(), l, sel.All)
	require.Len(t, rec.Batches, 1)
	assert.Equal(t, 4, rec.Batches[0].Size)
}

func TestRenderClampsPointSize(t *testing.T) {
	l := store.NewList(0, 1)
	l.Add(0, 0, 0, 1e6)
	p := testParams()
	p.MaxPointSize = 8
	rec := &Recorder{W: 64, H: 64}
	NewRenderer(p).Render(rec, DefaultCamera(), l, sel.All)
	require.Len(t, rec.Batches, 1)
	assert.Equal(t, 8, rec.Batches[0].Size)
}

func TestRenderLabels(t *testing.T) {
	pts := store.NewList(0, 1)
	pts.Add(0, 0, 0, 1)
	labels := store.NewLabels(1)
	labels.AddLabel(0, 0, 0, "Sol")
	labels.RGBA[0] = store.PackRGBA(255, 200, 0, 255)
	require.True(t, pts.Link(labels))

	rec := &Recorder{W: 64, H: 64}
	st := NewRenderer(testParams()).Render(rec, DefaultCamera(), pts, sel.All)
	require.Len(t, rec.Labels, 1)
	assert.Equal(t, "Sol", rec.Labels[0].Text)
	assert.Equal(t, RGBA(255, 200, 0, 255), rec.Labels[0].Color)
	assert.Equal(t, 1, st.Labels)
	assert.Equal(t, 1, st.Drawn)
}

func TestBlendPolicy(t *testing.T) {
	p := DefaultParams()
	b := NewRenderer(p).Blend()
	assert.Equal(t, BlendAdditive, b.Mode)
	assert.False(t, b.DepthWrite)
	assert.True(t, b.DepthTest)

	p.Background = RGB(20, 20, 20)
	b = NewRenderer(p).Blend()
	assert.Equal(t, BlendAlpha, b.Mode)
	assert.True(t, b.DepthWrite)
	assert.True(t, b.DepthTest)

	p.Fade = 0.5
	b = NewRenderer(p).Blend()
	assert.Equal(t, BlendAlpha, b.Mode)
	assert.False(t, b.DepthWrite)
}

func TestRenderFadeScalesAlpha(t *testing.T) {
	l := store.NewList(0, 1)
	l.Add(0, 0, 0, 1)
	p := testParams()
	p.Fade = 0.5
	rec := &Recorder{W: 64, H: 64}
	NewRenderer(p).Render(rec, DefaultCamera(), l, sel.All)
	require.Len(t, rec.Batches, 1)
	_, _, _, a := store.UnpackRGBA(rec.Batches[0].Points[0].RGBA)
	assert.Equal(t, uint8(127), a)
	assert.False(t, rec.Batches[0].Blend.DepthWrite)
}

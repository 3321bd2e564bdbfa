package look

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/sel"
	"specks/core/store"
)

func sample() *store.Specklist {
	l := store.NewList(3, 8)
	for i := 0; i < 8; i++ {
		v := float32(i)
		l.Add(v, 0, 0, 1+v, v, float32(rgb565(0xFF, 0x00, 0x00)), float32(0x00FF00))
	}
	return l
}

func TestRecolorIdempotent(t *testing.T) {
	p := NewPipeline()
	p.ColorBy(0, ColorLinear)
	p.SetColorRange(0, 7)

	l := sample()
	st := p.Prepare(l)
	require.Equal(t, 1, st.Recolored)
	first := append([]uint32(nil), l.RGBA...)

	st = p.Prepare(l)
	assert.Zero(t, st.Recolored, "unchanged sequence skips work")

	l.ColorSeq = 0
	p.Prepare(l)
	assert.Equal(t, first, l.RGBA, "recolor is bit-identical")
}

func TestRecolorForcedForWholeChain(t *testing.T) {
	p := NewPipeline()
	a, b := sample(), sample()
	require.True(t, a.Link(b))
	p.Prepare(a)

	p.SetBrightness(0.5, 1)
	st := p.Prepare(a)
	assert.Equal(t, 2, st.Lists)
	assert.Equal(t, 2, st.Recolored)

	p.SetColormap(DefaultColormap(16))
	assert.Equal(t, 2, p.Prepare(a).Recolored)
}

func TestRecolorModes(t *testing.T) {
	l := sample()

	Recolor(l, ColorParams{Mode: ColorRGB565, Attr: 1, Alpha: 0x80})
	assert.Equal(t, store.PackRGBA(0xFF, 0, 0, 0x80), l.RGBA[3])
	assert.Equal(t, 1, l.ColorBy)

	Recolor(l, ColorParams{Mode: ColorRGB888, Attr: 2, Alpha: 0xFF})
	assert.Equal(t, store.PackRGBA(0, 0xFF, 0, 0xFF), l.RGBA[0])

	Recolor(l, ColorParams{Mode: ColorConst, Const: 0x10203040, Alpha: 0xFF})
	assert.Equal(t, uint32(0x102030FF), l.RGBA[5])
	assert.Equal(t, store.NoAttr, l.ColorBy)

	m := DefaultColormap(8)
	Recolor(l, ColorParams{Mode: ColorExact, Attr: 0, Map: m, Alpha: 0xFF})
	assert.Equal(t, store.WithAlpha(m.At(6), 0xFF), l.RGBA[6])

	Recolor(l, ColorParams{Mode: ColorLinear, Attr: 9, Map: m, Const: 0x000000FF, Alpha: 0x40})
	assert.Equal(t, uint32(0x00000040), l.RGBA[0], "missing attribute falls back to const")
}

func TestResizeWithEmphasis(t *testing.T) {
	l := sample()
	l.Sel[2] = 1

	Resize(l, SizeParams{Mode: SizeDeclared, Scale: 2})
	assert.Equal(t, float32(2), l.Lum[0])
	assert.Equal(t, float32(16), l.Lum[7])
	assert.Equal(t, float32(1), l.Size[0], "declared sizes are kept")

	Resize(l, SizeParams{Mode: SizeAttr, Attr: 0, Min: 0, Max: 7, Scale: 1,
		Emphasis: sel.Bit(0, sel.ModeUse), EmphasisFactor: 10})
	assert.Equal(t, float32(0), l.Lum[0])
	assert.Equal(t, float32(1), l.Lum[7])
	assert.InDelta(t, 20.0/7.0, float64(l.Lum[2]), 1e-6)
	assert.Equal(t, 0, l.SizeBy)
}

func TestThresholdTagging(t *testing.T) {
	p := NewPipeline()
	l := sample()
	p.Prepare(l)
	assert.Equal(t, 8, sel.Count(l.Sel, sel.Bit(sel.ThresholdBit, sel.ModeUse)), "disabled threshold passes all")

	p.SetThreshold(0, 2, 4)
	st := p.Prepare(l)
	assert.Equal(t, 1, st.Thresholds)
	assert.Equal(t, 1, st.Resized, "threshold change refreshes emphasis")
	assert.Equal(t, 3, sel.Count(l.Sel, sel.Bit(sel.ThresholdBit, sel.ModeUse)))

	p.SetThreshold(-1, 0, 0)
	p.Prepare(l)
	assert.Equal(t, 8, sel.Count(l.Sel, sel.Bit(sel.ThresholdBit, sel.ModeUse)))
}

func TestInvalidateSizeOnlyResizes(t *testing.T) {
	p := NewPipeline()
	l := sample()
	p.SetThreshold(0, 2, 4)
	p.Prepare(l)
	l.Sel[0] |= threshBit

	p.InvalidateSize()
	st := p.Prepare(l)
	assert.Equal(t, Stats{Lists: 1, Resized: 1}, st)
	assert.Equal(t, 4, sel.Count(l.Sel, sel.Bit(sel.ThresholdBit, sel.ModeUse)), "threshold tags untouched")
}

func rgb565(r, g, b uint8) uint16 {
	rr := uint16(r>>3) & 0x1F
	gg := uint16(g>>2) & 0x3F
	bb := uint16(b>>3) & 0x1F
	return (rr << 11) | (gg << 5) | bb
}

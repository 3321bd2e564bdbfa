package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecklistAdd(t *testing.T) {
	l := NewList(3, 2)
	for i := 0; i < 100; i++ {
		l.Add(float32(i), 1, 2, 0.5, float32(i), float32(-i))
	}
	require.Equal(t, 100, l.Len())
	x, y, z := l.Position(42)
	assert.Equal(t, [3]float32{42, 1, 2}, [3]float32{x, y, z})
	assert.Equal(t, []float32{42, -42, 0}, l.Attrs(42))
	assert.Equal(t, float32(-42), l.AttrValue(42, 1))
	assert.Len(t, l.Sel, 100)
	assert.Equal(t, uint32(0xFFFFFFFF), l.RGBA[99])
}

func TestSpecklistAttrBounds(t *testing.T) {
	l := NewList(2, 0)
	assert.Equal(t, HeaderBytes+8, l.BytesPerSpeck())
	assert.True(t, l.ValidAttr(0))
	assert.True(t, l.ValidAttr(1))
	assert.False(t, l.ValidAttr(2))
	assert.False(t, l.ValidAttr(-1))

	assert.Equal(t, MaxAttrs, NewList(40, 0).NAttr)
}

func TestSpecklistLinkIsAppendOnly(t *testing.T) {
	a, b, c := NewList(0, 1), NewList(0, 1), NewList(0, 1)
	require.True(t, a.Link(b))
	assert.False(t, a.Link(c))
	assert.Same(t, b, a.Next())
	require.True(t, a.Tail().Link(c))
	assert.Same(t, c, a.Tail())
}

func TestSpecklistLabels(t *testing.T) {
	l := NewLabels(4)
	l.AddLabel(1, 2, 3, "Sol")
	l.AddLabel(4, 5, 6, "Vega")
	require.True(t, l.IsLabels())
	assert.Equal(t, []string{"Sol", "Vega"}, l.Titles)

	p := NewList(1, 4)
	p.Add(0, 0, 0, 1, 7)
	p.AddLabel(1, 1, 1, "late")
	assert.Equal(t, []string{"", "late"}, p.Titles)
}

func TestSpecklistEnsureLum(t *testing.T) {
	l := NewList(0, 4)
	l.Add(0, 0, 0, 2)
	l.Add(0, 0, 0, 3)
	lum := l.EnsureLum()
	assert.Equal(t, []float32{2, 3}, lum)
	l.Add(0, 0, 0, 4)
	assert.Len(t, l.Lum, 3)
}

func TestArenaReuse(t *testing.T) {
	a := NewArena(2)
	l := a.Get(4, 100)
	l.Add(1, 2, 3, 4, 5)
	l.Seq = 9
	a.Put(l)

	got := a.Get(2, 50)
	require.Same(t, l, got)
	assert.Zero(t, got.Len())
	assert.Zero(t, got.Seq)
	assert.Equal(t, 2, got.NAttr)
	assert.Nil(t, got.Next())

	big := a.Get(1, 1<<12)
	assert.NotSame(t, l, big)
	allocs, reuses, warm := a.Stats()
	assert.Equal(t, 2, allocs)
	assert.Equal(t, 1, reuses)
	assert.Zero(t, warm)

	for i := 0; i < 4; i++ {
		a.Put(NewList(0, 16))
	}
	_, _, warm = a.Stats()
	assert.Equal(t, 2, warm)
}

func TestPackRGBA(t *testing.T) {
	c := PackRGBA(0x11, 0x22, 0x33, 0x44)
	assert.Equal(t, uint32(0x11223344), c)
	r, g, b, a := UnpackRGBA(c)
	assert.Equal(t, [4]uint8{0x11, 0x22, 0x33, 0x44}, [4]uint8{r, g, b, a})
	assert.Equal(t, uint32(0x112233FF), WithAlpha(c, 0xFF))
}

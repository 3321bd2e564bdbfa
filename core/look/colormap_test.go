package look

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/store"
)

func TestColormapLinearIndex(t *testing.T) {
	c := DefaultColormap(32)
	tests := []struct {
		v    float32
		want int
	}{
		{0, 1},
		{10, 30},
		{-5, 0},
		{50, 31},
		{5, 16},
		{9.99, 30},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, c.Index(tt.v, 0, 10), "value %v", tt.v)
	}
	assert.Equal(t, 1, c.Index(3, 3, 3), "degenerate range")
}

func TestColormapExactIndex(t *testing.T) {
	c := DefaultColormap(8)
	assert.Equal(t, 3, c.ExactIndex(2.6))
	assert.Equal(t, 0, c.ExactIndex(-4))
	assert.Equal(t, 7, c.ExactIndex(100))
}

func TestLoadColormap(t *testing.T) {
	src := `# three entries
3
0 0 0
1.0 0.5 0.0
255 255 255 128
`
	c, err := LoadColormap(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, store.PackRGBA(0, 0, 0, 0xFF), c.At(0))
	assert.Equal(t, store.PackRGBA(255, 128, 0, 0xFF), c.At(1))
	assert.Equal(t, store.PackRGBA(255, 255, 255, 128), c.At(2))

	for _, bad := range []string{"", "2\n0 0 0\n1 1 1\n", "3\n0 0\n", "3\n0 0 0\n", "x\n"} {
		_, err := LoadColormap(strings.NewReader(bad))
		assert.ErrorIs(t, err, ErrColormap, "input %q", bad)
	}
}

func TestColormapAdjusted(t *testing.T) {
	c, err := NewColormap([]uint32{
		store.PackRGBA(0, 0, 0, 10),
		store.PackRGBA(64, 128, 255, 20),
		store.PackRGBA(255, 255, 255, 30),
	})
	require.NoError(t, err)
	assert.Same(t, c, c.Adjusted(1, 1))

	dim := c.Adjusted(0.5, 1)
	r, g, b, a := store.UnpackRGBA(dim.At(1))
	assert.Equal(t, [4]uint8{32, 64, 128, 20}, [4]uint8{r, g, b, a})

	bright := c.Adjusted(1, 2)
	r, _, _, _ = store.UnpackRGBA(bright.At(1))
	assert.Greater(t, r, uint8(64), "gamma > 1 lifts mid tones")

	_, err = NewColormap([]uint32{1, 2})
	assert.ErrorIs(t, err, ErrColormap)
}

// Package look maps speck attributes to appearance: colors through colormaps
// or packed-pixel codings, luminosity from sizes or attributes, and the
// threshold selection bit.
package look

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"specks/core/store"
)

var ErrColormap = errors.New("look: invalid colormap")

// Colormap is an ordered table of packed RGBA colors.
//
// In linear mode entries 1..N-2 cover the attribute range; entry 0 is used
// below the range and entry N-1 above it.
type Colormap struct {
	entries []uint32
}

// NewColormap wraps a table of packed colors. Tables need at least three
// entries: two sentinels and one in-range color.
func NewColormap(entries []uint32) (*Colormap, error) {
	if len(entries) < 3 {
		return nil, fmt.Errorf("%w: %d entries, need at least 3", ErrColormap, len(entries))
	}
	c := &Colormap{entries: make([]uint32, len(entries))}
	copy(c.entries, entries)
	return c, nil
}

// DefaultColormap returns an n-entry blue to white heat ramp.
func DefaultColormap(n int) *Colormap {
	if n < 3 {
		n = 3
	}
	e := make([]uint32, n)
	for i := range e {
		t := float64(i) / float64(n-1)
		r := clampByte(255 * math.Min(1, 2*t))
		g := clampByte(255 * math.Max(0, 2*t-0.6))
		b := clampByte(255 * (0.4 + 0.6*math.Abs(2*t-1)))
		e[i] = store.PackRGBA(r, g, b, 0xFF)
	}
	return &Colormap{entries: e}
}

// LoadColormap reads a text colormap: an entry count on the first line, then
// one "r g b [a]" line per entry. Channels are 0..1 floats or 0..255
// integers. Blank lines and lines starting with '#' are skipped.
func LoadColormap(r io.Reader) (*Colormap, error) {
	sc := bufio.NewScanner(r)
	want := -1
	var e []uint32
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || s[0] == '#' {
			continue
		}
		f := strings.Fields(s)
		if want < 0 {
			n, err := strconv.Atoi(f[0])
			if err != nil || n < 3 {
				return nil, fmt.Errorf("%w: line %d: bad entry count %q", ErrColormap, line, f[0])
			}
			want = n
			e = make([]uint32, 0, n)
			continue
		}
		if len(f) != 3 && len(f) != 4 {
			return nil, fmt.Errorf("%w: line %d: want 3 or 4 channels, got %d", ErrColormap, line, len(f))
		}
		var ch [4]uint8
		ch[3] = 0xFF
		for i, v := range f {
			b, err := parseChannel(v)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrColormap, line, err)
			}
			ch[i] = b
		}
		e = append(e, store.PackRGBA(ch[0], ch[1], ch[2], ch[3]))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if want < 0 || len(e) != want {
		return nil, fmt.Errorf("%w: declared %d entries, read %d", ErrColormap, want, len(e))
	}
	return &Colormap{entries: e}, nil
}

func parseChannel(s string) (uint8, error) {
	if strings.ContainsAny(s, ".eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, err
		}
		return clampByte(f * 255), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return clampByte(float64(n)), nil
}

// Len returns the number of entries.
func (c *Colormap) Len() int { return len(c.entries) }

// At returns entry i, clamped to the table.
func (c *Colormap) At(i int) uint32 {
	if i < 0 {
		i = 0
	}
	if i >= len(c.entries) {
		i = len(c.entries) - 1
	}
	return c.entries[i]
}

// Index maps v linearly from [cmin, cmax] onto entries 1..N-2. Values below
// the range map to 0, values above to N-1. NaN maps to 0.
func (c *Colormap) Index(v, cmin, cmax float32) int {
	n := len(c.entries)
	switch {
	case v != v:
		return 0
	case v < cmin:
		return 0
	case v > cmax:
		return n - 1
	}
	span := cmax - cmin
	if span <= 0 {
		return 1
	}
	idx := 1 + int((v-cmin)*float32(n-2)/span)
	if idx > n-2 {
		idx = n - 2
	}
	return idx
}

// ExactIndex rounds v and uses it as the index, clamped to the table.
func (c *Colormap) ExactIndex(v float32) int {
	if v != v {
		return 0
	}
	i := int(math.Round(float64(v)))
	if i < 0 {
		return 0
	}
	if i >= len(c.entries) {
		return len(c.entries) - 1
	}
	return i
}

// Adjusted returns a copy with brightness and gamma applied to every color
// channel: out = clamp(brightness * in^(1/gamma)). Alpha is kept.
func (c *Colormap) Adjusted(brightness, gamma float32) *Colormap {
	if brightness == 1 && (gamma == 1 || gamma <= 0) {
		return c
	}
	if gamma <= 0 {
		gamma = 1
	}
	inv := 1 / float64(gamma)
	var lut [256]uint8
	for i := range lut {
		v := math.Pow(float64(i)/255, inv) * float64(brightness)
		lut[i] = clampByte(v * 255)
	}
	out := &Colormap{entries: make([]uint32, len(c.entries))}
	for i, e := range c.entries {
		r, g, b, a := store.UnpackRGBA(e)
		out.entries[i] = store.PackRGBA(lut[r], lut[g], lut[b], a)
	}
	return out
}

func clampByte(v float64) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

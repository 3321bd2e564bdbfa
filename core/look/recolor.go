package look

import (
	"math"

	"specks/core/store"
)

// ColorMode selects how an attribute becomes a color.
type ColorMode uint8

const (
	// ColorLinear rescales [Min, Max] onto the colormap.
	ColorLinear ColorMode = iota
	// ColorExact uses the rounded attribute value as the colormap index.
	ColorExact
	// ColorConst paints every record with Const.
	ColorConst
	// ColorRGB565 reads the attribute as a packed 5-6-5 pixel.
	ColorRGB565
	// ColorRGB888 reads the attribute as a packed 0xRRGGBB pixel.
	ColorRGB888
)

func (m ColorMode) String() string {
	switch m {
	case ColorLinear:
		return "linear"
	case ColorExact:
		return "exact"
	case ColorConst:
		return "const"
	case ColorRGB565:
		return "rgb565"
	case ColorRGB888:
		return "rgb888"
	default:
		return "unknown"
	}
}

// Magic attribute names read as packed pixels instead of colormap indices.
const (
	MagicRGB565 = "rgb565"
	MagicRGB888 = "rgb888"
)

// ModeForAttr returns the packed-pixel mode for a magic attribute name.
func ModeForAttr(name string) (ColorMode, bool) {
	switch name {
	case MagicRGB565:
		return ColorRGB565, true
	case MagicRGB888, "rgb":
		return ColorRGB888, true
	}
	return ColorLinear, false
}

// ColorParams describes one recolor pass.
type ColorParams struct {
	Mode  ColorMode
	Attr  int
	Const uint32
	Min   float32
	Max   float32
	// Map is the brightness/gamma adjusted colormap.
	Map *Colormap
	// Alpha replaces the alpha channel of every color.
	Alpha uint8
}

// Recolor writes record colors for l. Lists without the driving attribute are
// painted with Const.
func Recolor(l *store.Specklist, p ColorParams) {
	n := l.Len()
	mode := p.Mode
	if mode != ColorConst && !l.ValidAttr(p.Attr) {
		mode = ColorConst
	}
	if (mode == ColorLinear || mode == ColorExact) && p.Map == nil {
		mode = ColorConst
	}
	rgba := l.RGBA[:n]
	switch mode {
	case ColorConst:
		c := store.WithAlpha(p.Const, p.Alpha)
		for i := range rgba {
			rgba[i] = c
		}
	case ColorLinear:
		for i := range rgba {
			v := l.AttrValue(i, p.Attr)
			rgba[i] = store.WithAlpha(p.Map.At(p.Map.Index(v, p.Min, p.Max)), p.Alpha)
		}
	case ColorExact:
		for i := range rgba {
			rgba[i] = store.WithAlpha(p.Map.At(p.Map.ExactIndex(l.AttrValue(i, p.Attr))), p.Alpha)
		}
	case ColorRGB565:
		for i := range rgba {
			r, g, b := rgb888From565(uint16(packedInt(l.AttrValue(i, p.Attr))))
			rgba[i] = store.PackRGBA(r, g, b, p.Alpha)
		}
	case ColorRGB888:
		for i := range rgba {
			v := packedInt(l.AttrValue(i, p.Attr))
			rgba[i] = store.PackRGBA(uint8(v>>16), uint8(v>>8), uint8(v), p.Alpha)
		}
	}
	l.ColorBy = p.Attr
	if mode == ColorConst {
		l.ColorBy = store.NoAttr
	}
}

func packedInt(v float32) uint32 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

func rgb888From565(p uint16) (r, g, b uint8) {
	rr := (p >> 11) & 0x1F
	gg := (p >> 5) & 0x3F
	bb := p & 0x1F

	r = uint8((uint32(rr) * 255) / 31)
	g = uint8((uint32(gg) * 255) / 63)
	b = uint8((uint32(bb) * 255) / 31)
	return r, g, b
}

package render

import "specks/core/store"

// Color is an RGBA color in 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

func RGB(r, g, b uint8) Color     { return Color{R: r, G: g, B: b, A: 0xFF} }
func RGBA(r, g, b, a uint8) Color { return Color{R: r, G: g, B: b, A: a} }

// Unpack converts a packed color word into a Color.
func Unpack(c uint32) Color {
	r, g, b, a := store.UnpackRGBA(c)
	return Color{R: r, G: g, B: b, A: a}
}

// Packed returns the color as one 0xRRGGBBAA word.
func (c Color) Packed() uint32 { return store.PackRGBA(c.R, c.G, c.B, c.A) }

// IsBlack reports whether the color channels are all zero.
func (c Color) IsBlack() bool { return c.R == 0 && c.G == 0 && c.B == 0 }

// MulScalar scales the color channels by s clamped to [0, 1].
func (c Color) MulScalar(s float32) Color {
	t := uint32(Clamp01(s) * 255)
	mul := func(ch uint8) uint8 {
		return uint8((uint32(ch) * t) / 255)
	}
	return Color{R: mul(c.R), G: mul(c.G), B: mul(c.B), A: c.A}
}

func (c Color) WithAlpha(a uint8) Color { c.A = a; return c }

// fadeAlpha scales the alpha byte of a packed color.
func fadeAlpha(c uint32, fade float32) uint32 {
	if fade >= 1 {
		return c
	}
	a := uint32(float32(c&0xFF) * Clamp01(fade))
	return c&^0xFF | a
}

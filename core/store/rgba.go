package store

// Colors are packed as 0xRRGGBBAA.

// PackRGBA packs four 8-bit channels into one color word.
func PackRGBA(r, g, b, a uint8) uint32 {
	return uint32(r)<<24 | uint32(g)<<16 | uint32(b)<<8 | uint32(a)
}

// UnpackRGBA splits a color word into channels.
func UnpackRGBA(c uint32) (r, g, b, a uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// WithAlpha replaces the alpha channel of a color word.
func WithAlpha(c uint32, a uint8) uint32 {
	return c&^0xFF | uint32(a)
}

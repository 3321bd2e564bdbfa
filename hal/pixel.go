package hal

// pack565 packs 8-bit channels into one RGB565 pixel.
func pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// expand565 converts little-endian RGB565 pixels in src to opaque RGBA in
// dst, replicating high bits into the low ones so full intensity stays 0xFF.
// It stops at whichever buffer ends first.
func expand565(dst, src []byte) {
	for i, j := 0, 0; i+1 < len(src) && j+3 < len(dst); i, j = i+2, j+4 {
		p := uint16(src[i]) | uint16(src[i+1])<<8
		r5, g6, b5 := uint8(p>>11), uint8(p>>5&0x3F), uint8(p&0x1F)
		dst[j] = r5<<3 | r5>>2
		dst[j+1] = g6<<2 | g6>>4
		dst[j+2] = b5<<3 | b5>>2
		dst[j+3] = 0xFF
	}
}

package render

import (
	"errors"
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// RasterTarget renders points into an RGB565 framebuffer with a float depth
// buffer. Callers provide the backing buffer and layout (stride).
type RasterTarget struct {
	Buf    []byte
	Stride int // bytes per row
	W      int
	H      int

	// Font draws labels; nil uses TomThumb.
	Font tinyfont.Fonter

	depth []float32
	blend BlendState
}

// NewRasterTarget wraps an RGB565 buffer.
func NewRasterTarget(buf []byte, stride, w, h int) *RasterTarget {
	return &RasterTarget{Buf: buf, Stride: stride, W: w, H: h}
}

func (t *RasterTarget) Size() (w, h int) { return t.W, t.H }

func (t *RasterTarget) MaxBatch() int { return 0 }

func (t *RasterTarget) SetBlend(b BlendState) { t.blend = b }

func (t *RasterTarget) ok() bool {
	return t != nil && t.Buf != nil && t.Stride > 0 && t.W > 0 && t.H > 0
}

// Clear fills color and resets the depth buffer.
func (t *RasterTarget) Clear(c Color) {
	if !t.ok() {
		return
	}
	p := rgb565From888(c.R, c.G, c.B)
	lo := byte(p)
	hi := byte(p >> 8)
	for y := 0; y < t.H; y++ {
		row := y * t.Stride
		for x := 0; x < t.W; x++ {
			off := row + x*2
			if off < 0 || off+1 >= len(t.Buf) {
				continue
			}
			t.Buf[off] = lo
			t.Buf[off+1] = hi
		}
	}
	if n := t.W * t.H; cap(t.depth) < n {
		t.depth = make([]float32, n)
	} else {
		t.depth = t.depth[:n]
	}
	for i := range t.depth {
		t.depth[i] = 1e9
	}
}

// DrawPoints rasterizes square points of side size centered on each vertex.
func (t *RasterTarget) DrawPoints(size int, pts []PointVertex) {
	if !t.ok() || size <= 0 {
		return
	}
	if len(t.depth) != t.W*t.H {
		t.Clear(Color{})
	}
	half := size / 2
	for _, p := range pts {
		x0 := int(p.X) - half
		y0 := int(p.Y) - half
		for y := y0; y < y0+size; y++ {
			if y < 0 || y >= t.H {
				continue
			}
			for x := x0; x < x0+size; x++ {
				if x < 0 || x >= t.W {
					continue
				}
				t.plot(x, y, p.Z, p.RGBA)
			}
		}
	}
}

func (t *RasterTarget) plot(x, y int, z float32, c uint32) {
	di := y*t.W + x
	if t.blend.DepthTest && z > t.depth[di] {
		return
	}
	off := y*t.Stride + x*2
	if off < 0 || off+1 >= len(t.Buf) {
		return
	}
	sr, sg, sb, sa := uint32(c>>24), uint32(c>>16&0xFF), uint32(c>>8&0xFF), uint32(c&0xFF)
	dr, dg, db := rgb888From565(uint16(t.Buf[off]) | uint16(t.Buf[off+1])<<8)

	var r, g, b uint32
	switch t.blend.Mode {
	case BlendAdditive:
		r = min(uint32(dr)+sr*sa/255, 255)
		g = min(uint32(dg)+sg*sa/255, 255)
		b = min(uint32(db)+sb*sa/255, 255)
	default:
		r = (sr*sa + uint32(dr)*(255-sa)) / 255
		g = (sg*sa + uint32(dg)*(255-sa)) / 255
		b = (sb*sa + uint32(db)*(255-sa)) / 255
	}
	px := rgb565From888(uint8(r), uint8(g), uint8(b))
	t.Buf[off] = byte(px)
	t.Buf[off+1] = byte(px >> 8)
	if t.blend.DepthWrite {
		t.depth[di] = z
	}
}

// SetPixel writes one opaque pixel, ignoring depth.
func (t *RasterTarget) SetPixel(x, y int, c Color) {
	if !t.ok() || x < 0 || y < 0 || x >= t.W || y >= t.H {
		return
	}
	off := y*t.Stride + x*2
	if off < 0 || off+1 >= len(t.Buf) {
		return
	}
	p := rgb565From888(c.R, c.G, c.B)
	t.Buf[off] = byte(p)
	t.Buf[off+1] = byte(p >> 8)
}

// Pixel reads back one pixel as 8-bit channels.
func (t *RasterTarget) Pixel(x, y int) Color {
	if !t.ok() || x < 0 || y < 0 || x >= t.W || y >= t.H {
		return Color{}
	}
	off := y*t.Stride + x*2
	r, g, b := rgb888From565(uint16(t.Buf[off]) | uint16(t.Buf[off+1])<<8)
	return RGB(r, g, b)
}

// DrawLabel writes s with its baseline at (x, y).
func (t *RasterTarget) DrawLabel(x, y int, s string, c Color) {
	if !t.ok() || s == "" {
		return
	}
	f := t.Font
	if f == nil {
		f = &tinyfont.TomThumb
	}
	tinyfont.WriteLine(rasterDisplay{t}, f, int16(x), int16(y), s, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
}

// rasterDisplay adapts a RasterTarget to the tinygo display driver interface
// so tinyfont can draw into it.
type rasterDisplay struct{ t *RasterTarget }

var _ drivers.Displayer = rasterDisplay{}

var errRotation = errors.New("render: raster target does not rotate")

func (d rasterDisplay) Size() (x, y int16) { return int16(d.t.W), int16(d.t.H) }

func (d rasterDisplay) SetPixel(x, y int16, c color.RGBA) {
	d.t.SetPixel(int(x), int(y), RGB(c.R, c.G, c.B))
}

func (d rasterDisplay) Display() error { return nil }

func (d rasterDisplay) SetRotation(r drivers.Rotation) error {
	if r != drivers.Rotation0 {
		return errRotation
	}
	return nil
}

func rgb565From888(r, g, b uint8) uint16 {
	return uint16((uint16(r>>3)&0x1F)<<11 | (uint16(g>>2)&0x3F)<<5 | (uint16(b>>3) & 0x1F))
}

func rgb888From565(p uint16) (r, g, b uint8) {
	r5 := uint8(p >> 11 & 0x1F)
	g6 := uint8(p >> 5 & 0x3F)
	b5 := uint8(p & 0x1F)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

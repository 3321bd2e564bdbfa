package render

import (
	"testing"

	"tinygo.org/x/drivers"
)

func newTestRaster(w, h int) *RasterTarget {
	return NewRasterTarget(make([]byte, w*h*2), w*2, w, h)
}

func TestRasterAdditiveSaturates(t *testing.T) {
	rt := newTestRaster(8, 8)
	rt.Clear(RGB(0, 0, 0))
	rt.SetBlend(BlendState{Mode: BlendAdditive, DepthTest: true})

	p := PointVertex{X: 4, Y: 4, Z: 0.5, RGBA: RGBA(128, 0, 0, 255).Packed()}
	rt.DrawPoints(1, []PointVertex{p})
	if got := rt.Pixel(4, 4); got.R < 120 || got.R > 140 {
		t.Fatalf("after one draw R=%d, want ~128", got.R)
	}
	rt.DrawPoints(1, []PointVertex{p})
	if got := rt.Pixel(4, 4); got.R != 255 {
		t.Fatalf("after two draws R=%d, want 255", got.R)
	}
}

func TestRasterDepthTest(t *testing.T) {
	rt := newTestRaster(8, 8)
	rt.Clear(RGB(0, 0, 0))
	rt.SetBlend(BlendState{Mode: BlendAlpha, DepthWrite: true, DepthTest: true})

	rt.DrawPoints(3, []PointVertex{{X: 4, Y: 4, Z: 0.2, RGBA: RGB(0, 255, 0).Packed()}})
	rt.DrawPoints(3, []PointVertex{{X: 4, Y: 4, Z: 0.8, RGBA: RGB(255, 0, 0).Packed()}})
	if got := rt.Pixel(4, 4); got.G != 255 || got.R != 0 {
		t.Fatalf("far point overwrote near one: %+v", got)
	}
	if got := rt.Pixel(3, 3); got.G != 255 {
		t.Fatalf("size-3 point did not cover neighbor: %+v", got)
	}
	if got := rt.Pixel(6, 6); got != RGB(0, 0, 0) {
		t.Fatalf("point spilled outside its square: %+v", got)
	}
}

func TestRasterClipsEdges(t *testing.T) {
	rt := newTestRaster(4, 4)
	rt.Clear(RGB(0, 0, 0))
	rt.SetBlend(BlendState{Mode: BlendAlpha})
	rt.DrawPoints(8, []PointVertex{{X: 0, Y: 0, RGBA: RGB(255, 255, 255).Packed()}})
	if got := rt.Pixel(0, 0); got != RGB(255, 255, 255) {
		t.Fatalf("corner pixel=%+v", got)
	}
}

func TestRasterDrawLabel(t *testing.T) {
	rt := newTestRaster(32, 16)
	rt.Clear(RGB(0, 0, 0))
	rt.DrawLabel(1, 8, "A", RGB(255, 255, 255))
	lit := 0
	for y := 0; y < 16; y++ {
		for x := 0; x < 32; x++ {
			if rt.Pixel(x, y) != RGB(0, 0, 0) {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("label drew nothing")
	}
}

func TestRasterDisplayRotation(t *testing.T) {
	d := rasterDisplay{newTestRaster(4, 4)}
	if err := d.SetRotation(drivers.Rotation0); err != nil {
		t.Fatalf("Rotation0: %v", err)
	}
	if err := d.SetRotation(drivers.Rotation90); err == nil {
		t.Fatalf("Rotation90 accepted")
	}
	if w, h := d.Size(); w != 4 || h != 4 {
		t.Fatalf("Size() = %d,%d", w, h)
	}
}

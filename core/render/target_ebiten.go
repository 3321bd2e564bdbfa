//go:build !tinygo && cgo

package render

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// maxEbitenPoints keeps one batch's vertex indices within uint16.
const maxEbitenPoints = 65535 / 4

var (
	whiteImage    = ebiten.NewImage(3, 3)
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

// EbitenTarget issues each point batch as one DrawTriangles call of quads.
//
// Ebiten images carry no depth buffer, so depth settings only affect the
// software target; here draw order decides occlusion.
type EbitenTarget struct {
	Img *ebiten.Image

	blend    ebiten.Blend
	vertices []ebiten.Vertex
	indices  []uint16
}

func NewEbitenTarget(img *ebiten.Image) *EbitenTarget {
	return &EbitenTarget{Img: img, blend: ebiten.BlendSourceOver}
}

func (t *EbitenTarget) Size() (w, h int) {
	if t.Img == nil {
		return 0, 0
	}
	b := t.Img.Bounds()
	return b.Dx(), b.Dy()
}

func (t *EbitenTarget) MaxBatch() int { return maxEbitenPoints }

func (t *EbitenTarget) Clear(c Color) {
	if t.Img == nil {
		return
	}
	t.Img.Fill(color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
}

func (t *EbitenTarget) SetBlend(b BlendState) {
	if b.Mode == BlendAdditive {
		t.blend = ebiten.BlendLighter
		return
	}
	t.blend = ebiten.BlendSourceOver
}

func (t *EbitenTarget) DrawPoints(size int, pts []PointVertex) {
	if t.Img == nil || size <= 0 || len(pts) == 0 {
		return
	}
	if len(pts) > maxEbitenPoints {
		pts = pts[:maxEbitenPoints]
	}
	t.vertices = t.vertices[:0]
	t.indices = t.indices[:0]
	half := float32(size) / 2
	for i, p := range pts {
		r := float32(p.RGBA>>24) / 255
		g := float32(p.RGBA>>16&0xFF) / 255
		b := float32(p.RGBA>>8&0xFF) / 255
		a := float32(p.RGBA&0xFF) / 255
		x0, y0, x1, y1 := p.X-half, p.Y-half, p.X+half, p.Y+half
		for _, c := range [4][2]float32{{x0, y0}, {x1, y0}, {x0, y1}, {x1, y1}} {
			t.vertices = append(t.vertices, ebiten.Vertex{
				DstX: c[0], DstY: c[1],
				SrcX: 1, SrcY: 1,
				ColorR: r, ColorG: g, ColorB: b, ColorA: a,
			})
		}
		base := uint16(i * 4)
		t.indices = append(t.indices, base, base+1, base+2, base+1, base+3, base+2)
	}
	op := &ebiten.DrawTrianglesOptions{Blend: t.blend}
	t.Img.DrawTriangles(t.vertices, t.indices, whiteSubImage, op)
}

func (t *EbitenTarget) DrawLabel(x, y int, s string, _ Color) {
	if t.Img == nil || s == "" {
		return
	}
	ebitenutil.DebugPrintAt(t.Img, s, x, y)
}

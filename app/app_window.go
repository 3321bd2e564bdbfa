//go:build !tinygo && cgo

package app

import (
	"github.com/hajimehoshi/ebiten/v2"

	"specks/core/render"
)

type gpuTarget = *render.EbitenTarget

// DrawScreen renders straight to the window surface when the GPU path is
// enabled. It implements hal.ScreenDrawer.
func (a *App) DrawScreen(screen *ebiten.Image) bool {
	if !a.gpu {
		return false
	}
	if a.gpuTarget == nil {
		a.gpuTarget = render.NewEbitenTarget(screen)
	}
	a.gpuTarget.Img = screen
	a.view.DrawTo(a.gpuTarget)
	return true
}

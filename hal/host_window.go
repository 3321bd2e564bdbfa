//go:build !tinygo && cgo

package hal

import (
	"errors"
	"image"

	"github.com/hajimehoshi/ebiten/v2"

	"specks/internal/buildinfo"
)

// RunWindow opens a desktop window showing the framebuffer and forwarding
// keyboard input. It blocks until the window closes or the app quits.
func RunWindow(opts Options, hz int, newApp func(HAL) (App, error)) (err error) {
	h := newHost(opts)
	app, err := newApp(h)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); err == nil {
			err = cerr
		}
	}()

	if hz <= 0 {
		hz = 60
	}
	g := &hostGame{h: h, app: app}
	ebiten.SetWindowTitle("specks (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(hz)
	err = ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// ScreenDrawer is implemented by apps that can draw straight to the window
// surface. DrawScreen reports false to fall back to the framebuffer.
type ScreenDrawer interface {
	DrawScreen(screen *ebiten.Image) bool
}

type hostGame struct {
	h       *hostHAL
	app     App
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	shown   uint64
}

func (g *hostGame) Update() error {
	g.h.kbd.poll()
	g.h.t.stepWall()
	if err := g.app.Step(); err != nil {
		if errors.Is(err, ErrQuit) {
			return ebiten.Termination
		}
		return err
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	if sd, ok := g.app.(ScreenDrawer); ok && sd.DrawScreen(screen) {
		return
	}
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	if n := fb.snapshot(g.scratch); n != g.shown {
		g.shown = n
		expand565(g.img.Pix, g.scratch)
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}

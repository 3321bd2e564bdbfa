// Package viewer is the interactive render loop: it animates time, orbits
// the camera from keyboard input and draws the engine's datasets plus a HUD
// into the host framebuffer.
package viewer

import (
	"fmt"
	"time"

	"tinygo.org/x/tinyfont"

	"specks/core/engine"
	"specks/core/live"
	"specks/core/render"
	"specks/hal"
	"specks/internal/buildinfo"
)

// Config tunes the viewer.
type Config struct {
	// Rate is data time advanced per second of host time.
	Rate float64
	// Loop wraps time to the start of the data's range at the end.
	Loop  bool
	Start float64

	Camera render.Camera
	Orbit  render.OrbitController
	HUD    bool
}

const (
	rotateStep = 0.05
	zoomStep   = 1.1
	timeStep   = 1.0
)

var (
	hudText = render.RGB(0xE0, 0xE8, 0xFF)
	hudDim  = render.RGB(0x90, 0xA0, 0xB8)
	hudWarn = render.RGB(0xFF, 0xB0, 0x40)
)

type hudTarget interface {
	render.DrawTarget
	render.LabelTarget
}

// Task renders one frame per Step.
type Task struct {
	eng *engine.Engine
	fb  hal.Framebuffer
	kbd hal.Keyboard
	clk hal.Time
	cfg Config

	target *render.RasterTarget
	font   tinyfont.Fonter
	cam    render.Camera
	orbit  render.OrbitController

	t        float64
	paused   bool
	lastTick time.Duration
	stats    render.Stats
	frames   uint64
}

// New binds the viewer to a host. It fails when the display is missing or
// not RGB565.
func New(h hal.HAL, eng *engine.Engine, cfg Config) (*Task, error) {
	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return nil, fmt.Errorf("viewer: no RGB565 framebuffer")
	}
	var kbd hal.Keyboard
	if in := h.Input(); in != nil {
		kbd = in.Keyboard()
	}
	if cfg.Rate == 0 {
		cfg.Rate = 1
	}
	t := &Task{
		eng:    eng,
		fb:     fb,
		kbd:    kbd,
		clk:    h.Time(),
		cfg:    cfg,
		target: render.NewRasterTarget(fb.Buffer(), fb.StrideBytes(), fb.Width(), fb.Height()),
		font:   &tinyfont.TomThumb,
		cam:    cfg.Camera,
		orbit:  cfg.Orbit,
		t:      cfg.Start,
	}
	t.target.Font = t.font
	if t.cam == (render.Camera{}) {
		t.cam = render.DefaultCamera()
	}
	t.orbit.Apply(&t.cam)
	if t.clk != nil {
		t.lastTick = t.clk.Elapsed()
	}
	return t, nil
}

// Time returns the data time currently shown.
func (t *Task) Time() float64 { return t.t }

// Stats returns what the last frame drew.
func (t *Task) Stats() render.Stats { return t.stats }

// Camera returns the current camera.
func (t *Task) Camera() render.Camera { return t.cam }

// Step handles input, advances time and renders one frame into the
// framebuffer.
func (t *Task) Step() error {
	if err := t.Update(); err != nil {
		return err
	}
	t.DrawTo(t.target)
	return t.fb.Present()
}

// Update handles input and advances time without drawing.
func (t *Task) Update() error {
	if err := t.handleInput(); err != nil {
		return err
	}
	t.advance()
	return nil
}

// DrawTo renders the current frame and the HUD into target.
func (t *Task) DrawTo(target render.DrawTarget) render.Stats {
	t.stats = t.eng.Render(engine.DefaultView, t.cam, target, t.t)
	t.frames++
	if t.cfg.HUD {
		t.drawHUD(target)
	}
	return t.stats
}

func (t *Task) handleInput() error {
	if t.kbd == nil {
		return nil
	}
	for {
		select {
		case ev := <-t.kbd.Events():
			if !ev.Press {
				continue
			}
			if err := t.key(ev); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

func (t *Task) key(ev hal.KeyEvent) error {
	switch ev.Code {
	case hal.KeyEscape:
		return hal.ErrQuit
	case hal.KeyLeft:
		t.orbit.Rotate(-rotateStep, 0)
	case hal.KeyRight:
		t.orbit.Rotate(rotateStep, 0)
	case hal.KeyUp:
		t.orbit.Rotate(0, rotateStep)
	case hal.KeyDown:
		t.orbit.Rotate(0, -rotateStep)
	case hal.KeyPageUp:
		t.seek(t.t + timeStep)
	case hal.KeyPageDown:
		t.seek(t.t - timeStep)
	case hal.KeyHome:
		t.seek(t.span().lo)
	case hal.KeyEnd:
		t.seek(t.span().hi)
	case hal.KeyF1:
		t.cfg.HUD = !t.cfg.HUD
	}
	switch ev.Rune {
	case 'q':
		return hal.ErrQuit
	case '+', '=':
		t.orbit.Zoom(1 / zoomStep)
	case '-':
		t.orbit.Zoom(zoomStep)
	case ' ':
		t.paused = !t.paused
	case 'h':
		t.cfg.HUD = !t.cfg.HUD
	}
	t.orbit.Apply(&t.cam)
	return nil
}

type span struct {
	lo, hi float64
	ok     bool
}

// span is the union of every dataset's time range.
func (t *Task) span() span {
	var s span
	for _, d := range t.eng.Datasets() {
		lo, hi, ok := t.eng.TimeRange(d.ID)
		if !ok {
			continue
		}
		if !s.ok {
			s = span{lo, hi, true}
			continue
		}
		s.lo, s.hi = min(s.lo, lo), max(s.hi, hi)
	}
	return s
}

func (t *Task) seek(v float64) {
	s := t.span()
	if s.ok {
		v = min(max(v, s.lo), s.hi)
	}
	t.t = v
}

// advance moves time by the host clock. Live data still arriving extends
// the range, so time only wraps when looping is on.
func (t *Task) advance() {
	if t.clk == nil {
		return
	}
	now := t.clk.Elapsed()
	dt := (now - t.lastTick).Seconds()
	t.lastTick = now
	if t.paused {
		return
	}
	s := t.span()
	if !s.ok {
		return
	}
	next := t.t + dt*t.cfg.Rate
	if next > s.hi {
		if t.cfg.Loop && s.hi > s.lo {
			next = s.lo
		} else {
			next = s.hi
		}
	}
	t.t = max(next, s.lo)
}

func (t *Task) drawHUD(dt render.DrawTarget) {
	target, ok := dt.(hudTarget)
	if !ok {
		return
	}
	line := 0
	put := func(s string, c render.Color) {
		line++
		target.DrawLabel(4, 8*line, s, c)
	}
	put(fmt.Sprintf("specks %s  t=%.2f", buildinfo.Short(), t.t), hudText)
	put(fmt.Sprintf("drawn %d  culled %d  batches %d", t.stats.Drawn, t.stats.Culled, t.stats.Batches), hudDim)
	for _, d := range t.eng.Datasets() {
		if d.State() == live.Absent {
			continue
		}
		put(fmt.Sprintf("%s: %s", d.Name, d.State()), hudDim)
	}
	if t.paused {
		t.drawRight(target, 8, "paused", hudWarn)
	}
	if r, ok := t.eng.Context().Reporter.Last(); ok {
		put(fmt.Sprintf("! %s %s: %v", r.Scope, r.Kind, r.Err), hudWarn)
	}
}

// drawRight writes s right-aligned on the baseline y.
func (t *Task) drawRight(target hudTarget, y int, s string, c render.Color) {
	_, w := tinyfont.LineWidth(t.font, s)
	tw, _ := target.Size()
	target.DrawLabel(tw-int(w)-4, y, s, c)
}

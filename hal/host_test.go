//go:build !tinygo

package hal

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

type countingApp struct {
	h      HAL
	steps  int
	quitAt int
	closed bool
	seen   []time.Duration
}

func (a *countingApp) Step() error {
	a.steps++
	a.seen = append(a.seen, a.h.Time().Elapsed())
	if a.quitAt > 0 && a.steps >= a.quitAt {
		return ErrQuit
	}
	return nil
}

func (a *countingApp) Close() error {
	a.closed = true
	return nil
}

func TestRunHeadlessStopsAfterTicks(t *testing.T) {
	var app *countingApp
	err := RunHeadless(context.Background(), Options{Width: 8, Height: 4}, HeadlessConfig{Hz: 1000, Ticks: 3}, func(h HAL) (App, error) {
		app = &countingApp{h: h}
		return app, nil
	})
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if app.steps != 3 || !app.closed {
		t.Fatalf("steps=%d closed=%v, want 3 true", app.steps, app.closed)
	}
	want := []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}
	for i, d := range want {
		if app.seen[i] != d {
			t.Fatalf("elapsed[%d]=%v, want %v", i, app.seen[i], d)
		}
	}
}

func TestRunHeadlessQuitIsClean(t *testing.T) {
	var app *countingApp
	err := RunHeadless(context.Background(), Options{}, HeadlessConfig{Hz: 1000}, func(h HAL) (App, error) {
		app = &countingApp{h: h, quitAt: 2}
		return app, nil
	})
	if err != nil {
		t.Fatalf("RunHeadless: %v", err)
	}
	if app.steps != 2 {
		t.Fatalf("steps=%d, want 2", app.steps)
	}
}

func TestRunHeadlessConstructorError(t *testing.T) {
	boom := errors.New("boom")
	err := RunHeadless(context.Background(), Options{}, HeadlessConfig{}, func(HAL) (App, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}
}

func TestFramebufferPresentPublishes(t *testing.T) {
	fb := newHostFramebuffer(2, 1)
	fb.ClearRGB(0xFF, 0, 0)
	dst := make([]byte, 4)
	if n := fb.snapshot(dst); n != 0 || !bytes.Equal(dst, []byte{0, 0, 0, 0}) {
		t.Fatalf("unpresented frame visible: n=%d %x", n, dst)
	}
	if err := fb.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	if n := fb.snapshot(dst); n != 1 || !bytes.Equal(dst, []byte{0x00, 0xF8, 0x00, 0xF8}) {
		t.Fatalf("presented frame: n=%d %x", n, dst)
	}
}

func TestHostLoggerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	h := New(Options{Log: &buf})
	h.Logger().WriteLineString("a")
	h.Logger().WriteLineBytes([]byte("b"))
	if got := buf.String(); got != "a\nb\n" {
		t.Fatalf("log=%q", got)
	}
}

func TestExpand565(t *testing.T) {
	src := []byte{0x00, 0xF8, 0xE0, 0x07, 0x1F, 0x00, 0xFF, 0xFF}
	dst := make([]byte, 16)
	expand565(dst, src)
	want := []byte{
		0xFF, 0, 0, 0xFF,
		0, 0xFF, 0, 0xFF,
		0, 0, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF,
	}
	if !bytes.Equal(dst, want) {
		t.Fatalf("expand565 = %x, want %x", dst, want)
	}
	if p := pack565(0xFF, 0xFF, 0xFF); p != 0xFFFF {
		t.Fatalf("pack565(white) = %#x", p)
	}
}

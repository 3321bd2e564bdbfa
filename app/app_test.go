package app

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/live"
	"specks/hal"
	"specks/internal/config"
)

type fakeFB struct {
	buf      []byte
	presents int
}

func (f *fakeFB) Width() int                   { return 48 }
func (f *fakeFB) Height() int                  { return 48 }
func (f *fakeFB) Format() hal.PixelFormat      { return hal.PixelFormatRGB565 }
func (f *fakeFB) StrideBytes() int             { return 96 }
func (f *fakeFB) Buffer() []byte               { return f.buf }
func (f *fakeFB) ClearRGB(r, g, b uint8)       {}
func (f *fakeFB) Present() error               { f.presents++; return nil }
func (f *fakeFB) Framebuffer() hal.Framebuffer { return f }

type fakeKbd struct{ ch chan hal.KeyEvent }

func (k *fakeKbd) Events() <-chan hal.KeyEvent { return k.ch }
func (k *fakeKbd) Keyboard() hal.Keyboard      { return k }

type fakeClock struct{}

func (fakeClock) Elapsed() time.Duration { return 0 }

type lines struct{ bytes.Buffer }

func (l *lines) WriteLineString(s string) { l.WriteString(s + "\n") }
func (l *lines) WriteLineBytes(b []byte)  { l.Write(append(b, '\n')) }

type fakeHAL struct {
	fb  *fakeFB
	kbd *fakeKbd
	log *lines
}

func (h *fakeHAL) Logger() hal.Logger   { return h.log }
func (h *fakeHAL) Display() hal.Display { return h.fb }
func (h *fakeHAL) Input() hal.Input     { return h.kbd }
func (h *fakeHAL) Time() hal.Time       { return fakeClock{} }

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		fb:  &fakeFB{buf: make([]byte, 48*96)},
		kbd: &fakeKbd{ch: make(chan hal.KeyEvent, 4)},
		log: &lines{},
	}
}

func writeFrames(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	for i := 0; i < 3; i++ {
		f := live.NewFrame(float64(i), 1)
		f.Add(0, 0, 0, 1, float32(i))
		f.Add(0.2, 0, 0, 1, float32(i+1))
		require.NoError(t, live.EncodeText(&buf, f))
	}
	path := filepath.Join(dir, "frames.txt")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "debug"
	cfg.Datasets[0].Source.Bodies = 8
	cfg.Datasets[0].Source.Steps = 4
	cfg.Datasets[0].Source.FrameRate = 200
	cfg.Datasets = append(cfg.Datasets, config.DatasetConfig{
		Name:       "static",
		Attrs:      []string{"mass"},
		Files:      []string{writeFrames(t, t.TempDir())},
		ColorBy:    "mass",
		SizeBy:     "mass",
		Threshold:  &config.ThresholdConfig{Attr: "mass", Min: 1, Max: 9},
		Selections: []string{"heavy = threshold"},
		Emphasis:   &config.EmphasisConfig{Terms: "heavy", Factor: 2},
	})
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestAppRunsAndCloses(t *testing.T) {
	h := newFakeHAL()
	a, err := New(context.Background(), h, testConfig(t))
	require.NoError(t, err)

	ds := a.Engine().Datasets()
	require.Len(t, ds, 2)
	assert.Equal(t, live.Enabled, ds[0].State())
	assert.Nil(t, ds[1].Source())

	src := ds[0].Source()
	require.Eventually(t, func() bool {
		_, _, ok := src.TimeRange()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, a.Step())
	}
	assert.Equal(t, 3, h.fb.presents)
	assert.Positive(t, a.Viewer().Stats().Drawn)

	require.NoError(t, a.Close())
	assert.Nil(t, a.Engine().Datasets()[0].Source())
	assert.Contains(t, h.log.String(), "started")
}

func TestAppRejectsBadDataset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datasets[1].Colormap = filepath.Join(t.TempDir(), "missing.cmap")
	_, err := New(context.Background(), newFakeHAL(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Datasets[1].Selections = []string{"x = nothing"}
	_, err = New(context.Background(), newFakeHAL(), cfg)
	assert.Error(t, err)
}

func TestMetricsHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Datasets = cfg.Datasets[1:]
	a, err := New(context.Background(), newFakeHAL(), cfg)
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.Step())

	srv := httptest.NewServer(a.MetricsHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

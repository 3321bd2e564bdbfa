// Package app wires a configuration into a running viewer: the engine, its
// datasets and live sources, the metrics endpoint and the render task.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"specks/core/engine"
	"specks/core/live"
	"specks/core/metrics"
	"specks/core/render"
	"specks/core/services/logger"
	"specks/core/store"
	"specks/core/tasks/viewer"
	"specks/hal"
	"specks/internal/buildinfo"
	"specks/internal/config"
)

// App is the running system. It implements hal.App.
type App struct {
	eng  *engine.Engine
	view *viewer.Task
	log  *slog.Logger
	met  *metrics.Metrics

	// gpu draws through the window's GPU target instead of the framebuffer.
	gpu       bool
	gpuTarget gpuTarget

	cancel context.CancelFunc
	g      *errgroup.Group
	srv    *http.Server
}

// New builds the system described by cfg on h and starts the live sources
// and the metrics server in the background.
func New(ctx context.Context, h hal.HAL, cfg config.Config) (*App, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	params, err := cfg.Render.Params()
	if err != nil {
		return nil, err
	}
	log := logger.New(h.Logger(), level)
	met := metrics.New()
	ectx := engine.NewContext(engine.Options{
		Log:     log,
		Metrics: met,
		Store: store.Config{
			InitialSlots: cfg.Store.InitialSlots,
			SafetyMargin: cfg.Store.SafetyMargin,
			WarmLists:    cfg.Store.WarmLists,
		},
	})
	eng := engine.New(ectx, params, cfg.Store.MemoryLimit)

	a := &App{eng: eng, log: log, met: met, gpu: cfg.Window.GPU}
	var runners []live.Runner
	for _, dc := range cfg.Datasets {
		r, err := a.addDataset(ctx, dc)
		if err != nil {
			a.closeSources()
			return nil, err
		}
		if r != nil {
			runners = append(runners, r)
		}
	}

	a.view, err = viewer.New(h, eng, viewer.Config{
		Rate:   cfg.Animate.Rate,
		Loop:   cfg.Animate.Loop,
		Start:  cfg.Animate.Start,
		Camera: camera(cfg.Camera),
		Orbit: render.OrbitController{
			Yaw:       cfg.Camera.Yaw,
			Pitch:     cfg.Camera.Pitch,
			Radius:    cfg.Camera.Distance,
			MinRadius: 0.05,
			MaxRadius: 1e4,
		},
		HUD: true,
	})
	if err != nil {
		a.closeSources()
		return nil, err
	}

	gctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(gctx)
	a.cancel, a.g = cancel, g
	for _, r := range runners {
		g.Go(func() error { return r.Run(gctx) })
	}
	if cfg.Metrics.Addr != "" {
		if err := a.serveMetrics(gctx, cfg.Metrics.Addr); err != nil {
			a.Close()
			return nil, err
		}
	}
	log.Info("started", "version", buildinfo.Short(), "datasets", len(cfg.Datasets), "sources", len(runners))
	return a, nil
}

// Engine returns the engine the app drives.
func (a *App) Engine() *engine.Engine { return a.eng }

// Viewer returns the render task.
func (a *App) Viewer() *viewer.Task { return a.view }

// Step renders one frame. On the GPU path it only handles input and time;
// the window calls DrawScreen.
func (a *App) Step() error {
	if a.gpu {
		return a.view.Update()
	}
	return a.view.Step()
}

// Close stops the sources and the metrics server and waits for them.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	a.closeSources()
	var err error
	if a.g != nil {
		err = a.g.Wait()
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	a.log.Info("stopped")
	return err
}

func (a *App) closeSources() {
	for _, d := range a.eng.Datasets() {
		if d.Source() == nil {
			continue
		}
		if err := a.eng.SetSourceState(context.Background(), d.ID, live.Absent); err != nil {
			a.log.Warn("close source", "dataset", d.Name, "err", err)
		}
	}
}

// addDataset registers dc with the engine and returns the runner of its
// live source, if any.
func (a *App) addDataset(ctx context.Context, dc config.DatasetConfig) (live.Runner, error) {
	e := a.eng
	id, err := e.AddDataset(dc.Name, dc.Attrs)
	if err != nil {
		return nil, err
	}
	for _, path := range dc.Files {
		if err := loadFile(e, id, path); err != nil {
			return nil, err
		}
	}
	if dc.Colormap != "" {
		f, err := os.Open(dc.Colormap)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", dc.Name, err)
		}
		err = e.LoadColormap(id, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("dataset %s: colormap %s: %w", dc.Name, dc.Colormap, err)
		}
	}

	var src live.Source
	if dc.Source != nil {
		if src, err = newSource(dc.Name, e.Context().LiveEnv(), dc.Source); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", dc.Name, err)
		}
		if err := e.Bind(id, src); err != nil {
			return nil, err
		}
	}

	if err := a.applyLook(id, dc); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dc.Name, err)
	}
	e.Datasets()[id].Hidden = dc.Hidden
	r, _ := src.(live.Runner)
	return r, nil
}

func (a *App) applyLook(id int, dc config.DatasetConfig) error {
	e := a.eng
	if dc.ColorBy != "" {
		if err := e.SetColorBy(id, dc.ColorBy); err != nil {
			return err
		}
	}
	if dc.SizeBy != "" {
		if err := e.SetSizeBy(id, dc.SizeBy); err != nil {
			return err
		}
	}
	if dc.SizeScale != 0 {
		if err := e.SetSizeScale(id, dc.SizeScale); err != nil {
			return err
		}
	}
	if th := dc.Threshold; th != nil {
		if err := e.SetThreshold(id, th.Attr, th.Min, th.Max); err != nil {
			return err
		}
	}
	for _, expr := range dc.Selections {
		if _, err := e.ParseSelectionExpression(expr); err != nil {
			return fmt.Errorf("selection %q: %w", expr, err)
		}
	}
	if em := dc.Emphasis; em != nil {
		if err := e.SetEmphasis(id, em.Terms, em.Factor); err != nil {
			return err
		}
	}
	return nil
}

func loadFile(e *engine.Engine, id int, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = e.LoadText(id, f)
	return err
}

func newSource(name string, env live.Env, sc *config.SourceConfig) (live.Source, error) {
	mode, err := sc.BuildMode()
	if err != nil {
		return nil, err
	}
	opts := live.GateOptions{Mode: mode, Retain: sc.Retain}
	switch sc.Kind {
	case "dir":
		return live.NewDirSource(name, env, opts, live.DirConfig{Dir: sc.Path, Pattern: sc.Pattern, Debounce: sc.Debounce})
	case "ws":
		return live.NewWSSource(name, env, opts, live.WSConfig{URL: sc.URL, ReadLimit: sc.ReadLimit, HandshakeTimeout: sc.HandshakeTimeout}), nil
	case "orbit":
		return live.NewOrbitSource(name, env, opts, live.OrbitConfig{
			Bodies: sc.Bodies,
			Steps:  sc.Steps,
			Dt:     sc.Dt,
			Rate:   sc.FrameRate,
			Seed:   sc.Seed,
			Label:  sc.Label,
		}), nil
	}
	return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
}

func camera(cc config.CameraConfig) render.Camera {
	cam := render.DefaultCamera()
	if cc.FOV > 0 {
		cam.FOVYRad = cc.FOV
	}
	if cc.Ortho {
		cam.Type = render.Orthographic
		cam.OrthoSize = max(cc.Distance/2, 0.5)
	}
	return cam
}

// MetricsHandler serves the app's Prometheus registry.
func (a *App) MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.met.Handler())
	return mux
}

func (a *App) serveMetrics(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.srv = &http.Server{Handler: a.MetricsHandler(), ReadHeaderTimeout: 5 * time.Second}
	a.log.Info("serving metrics", "addr", ln.Addr().String())
	a.g.Go(func() error {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics: %w", err)
		}
		return nil
	})
	a.g.Go(func() error {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return a.srv.Shutdown(sctx)
	})
	return nil
}

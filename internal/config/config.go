// Package config loads the viewer configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"specks/core/live"
	"specks/core/render"
	"specks/core/store"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the whole viewer configuration.
type Config struct {
	Window   WindowConfig    `yaml:"window"`
	Log      LogConfig       `yaml:"log"`
	Render   RenderConfig    `yaml:"render"`
	Store    StoreConfig     `yaml:"store"`
	Animate  AnimateConfig   `yaml:"animate"`
	Camera   CameraConfig    `yaml:"camera"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Datasets []DatasetConfig `yaml:"datasets"`
}

type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	Hz     int `yaml:"hz"`
	// GPU draws points as ebiten triangle batches instead of through the
	// software framebuffer. It only applies to the windowed host.
	GPU bool `yaml:"gpu"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

type RenderConfig struct {
	Falloff      string  `yaml:"falloff"`
	K            float32 `yaml:"k"`
	Knee         float32 `yaml:"knee"`
	MaxPointSize int     `yaml:"max_point_size"`
	MinLum       float32 `yaml:"min_lum"`
	BatchCap     int     `yaml:"batch_cap"`
	// Background is "#RRGGBB". Black selects additive blending.
	Background string  `yaml:"background"`
	Fade       float32 `yaml:"fade"`
	Seed       int64   `yaml:"seed"`
}

type StoreConfig struct {
	InitialSlots int    `yaml:"initial_slots"`
	SafetyMargin uint64 `yaml:"safety_margin"`
	WarmLists    int    `yaml:"warm_lists"`
	// MemoryLimit caps live specklist bytes; zero disables purging.
	MemoryLimit int64 `yaml:"memory_limit"`
}

type AnimateConfig struct {
	// Rate is data time units advanced per wall-clock second.
	Rate  float64 `yaml:"rate"`
	Loop  bool    `yaml:"loop"`
	Start float64 `yaml:"start"`
}

type CameraConfig struct {
	Distance float32 `yaml:"distance"`
	Yaw      float32 `yaml:"yaw"`
	Pitch    float32 `yaml:"pitch"`
	FOV      float32 `yaml:"fov"`
	Ortho    bool    `yaml:"ortho"`
}

type MetricsConfig struct {
	// Addr serves Prometheus metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

type ThresholdConfig struct {
	Attr string  `yaml:"attr"`
	Min  float32 `yaml:"min"`
	Max  float32 `yaml:"max"`
}

type EmphasisConfig struct {
	Terms  string  `yaml:"terms"`
	Factor float32 `yaml:"factor"`
}

// DatasetConfig describes one dataset: static frame files, a live source, or
// both (files load first, the source then takes over).
type DatasetConfig struct {
	Name      string           `yaml:"name"`
	Attrs     []string         `yaml:"attrs"`
	Files     []string         `yaml:"files"`
	Colormap  string           `yaml:"colormap"`
	ColorBy   string           `yaml:"color_by"`
	SizeBy    string           `yaml:"size_by"`
	SizeScale float32          `yaml:"size_scale"`
	Threshold *ThresholdConfig `yaml:"threshold"`
	Emphasis  *EmphasisConfig  `yaml:"emphasis"`
	// Selections are evaluated in order after loading.
	Selections []string      `yaml:"selections"`
	Hidden     bool          `yaml:"hidden"`
	Source     *SourceConfig `yaml:"source"`
}

// SourceConfig binds a live source.
type SourceConfig struct {
	// Kind is dir, ws or orbit.
	Kind  string `yaml:"kind"`
	Build string `yaml:"build"`
	// Retain bounds the frames kept in memory; zero keeps all.
	Retain int `yaml:"retain"`

	Path     string        `yaml:"path"`
	Pattern  string        `yaml:"pattern"`
	Debounce time.Duration `yaml:"debounce"`

	URL              string        `yaml:"url"`
	ReadLimit        int64         `yaml:"read_limit"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	Bodies int     `yaml:"bodies"`
	Steps  int     `yaml:"steps"`
	Dt     float64 `yaml:"dt"`
	// FrameRate paces generated frames per second; zero runs unpaced.
	FrameRate float64 `yaml:"frame_rate"`
	Seed      int64   `yaml:"seed"`
	Label     string  `yaml:"label"`
}

// Default returns the configuration used for missing fields: one synthetic
// orbit dataset in a 320x320 window, bright enough to see from the default
// camera distance.
func Default() Config {
	p := render.DefaultParams()
	p.K = 25
	st := store.DefaultConfig()
	return Config{
		Window: WindowConfig{Width: 320, Height: 320, Hz: 60},
		Log:    LogConfig{Level: "info"},
		Render: RenderConfig{
			Falloff:      p.Falloff.String(),
			K:            p.K,
			Knee:         p.Knee,
			MaxPointSize: p.MaxPointSize,
			MinLum:       p.MinLum,
			BatchCap:     p.BatchCap,
			Background:   "#000000",
			Fade:         p.Fade,
			Seed:         p.Seed,
		},
		Store: StoreConfig{
			InitialSlots: st.InitialSlots,
			SafetyMargin: st.SafetyMargin,
			WarmLists:    st.WarmLists,
		},
		Animate: AnimateConfig{Rate: 1, Loop: true},
		Camera:  CameraConfig{Distance: 3, Pitch: 0.3, FOV: 1},
		Datasets: []DatasetConfig{{
			Name:    "orbits",
			Attrs:   append([]string(nil), live.OrbitAttrNames...),
			ColorBy: "radius 0.2 2.2",
			Source:  &SourceConfig{Kind: "orbit", Bodies: 400, Steps: 600, Dt: 0.05, FrameRate: 30, Seed: 1, Label: "sun"},
		}},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.resolve(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes YAML over the defaults. A document naming datasets replaces
// the default dataset list.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	cfg.Datasets = nil
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse: %w", err)
	}
	if cfg.Datasets == nil {
		cfg.Datasets = Default().Datasets
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// resolve makes relative file paths relative to the config's directory.
func (c *Config) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Datasets {
		d := &c.Datasets[i]
		for j := range d.Files {
			d.Files[j] = abs(d.Files[j])
		}
		d.Colormap = abs(d.Colormap)
		if d.Source != nil && d.Source.Kind == "dir" {
			d.Source.Path = abs(d.Source.Path)
		}
	}
}

// Validate checks every field that cannot be fixed up with a default.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		bad("window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Window.Hz <= 0 {
		bad("window hz %d", c.Window.Hz)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Render.Params(); err != nil {
		errs = append(errs, err)
	}
	if c.Store.MemoryLimit < 0 {
		bad("negative memory limit")
	}
	seen := make(map[string]bool)
	for i, d := range c.Datasets {
		name := strings.ToLower(d.Name)
		switch {
		case name == "":
			bad("dataset %d has no name", i)
		case seen[name]:
			bad("dataset %q listed twice", d.Name)
		}
		seen[name] = true
		if len(d.Attrs) > store.MaxAttrs {
			bad("dataset %q: %d attributes (max %d)", d.Name, len(d.Attrs), store.MaxAttrs)
		}
		if s := d.Source; s != nil {
			if err := s.validate(); err != nil {
				errs = append(errs, fmt.Errorf("dataset %q: %w", d.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *SourceConfig) validate() error {
	if _, err := s.BuildMode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s.Retain < 0 {
		return fmt.Errorf("%w: negative retain", ErrInvalid)
	}
	switch s.Kind {
	case "dir":
		if s.Path == "" {
			return fmt.Errorf("%w: dir source needs a path", ErrInvalid)
		}
	case "ws":
		if !strings.HasPrefix(s.URL, "ws://") && !strings.HasPrefix(s.URL, "wss://") {
			return fmt.Errorf("%w: ws source url %q", ErrInvalid, s.URL)
		}
	case "orbit":
		if s.Bodies < 0 || s.Steps < 0 {
			return fmt.Errorf("%w: orbit counts must not be negative", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: source kind %q", ErrInvalid, s.Kind)
	}
	return nil
}

// BuildMode returns the gate build mode; empty means locked.
func (s *SourceConfig) BuildMode() (live.BuildMode, error) {
	if s.Build == "" {
		return live.BuildLocked, nil
	}
	return live.ParseBuildMode(s.Build)
}

// LogLevel maps the configured level name to a slog level.
func (c Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, c.Log.Level)
	}
	return l, nil
}

// Params converts the render section, filling zero fields from the
// renderer's defaults.
func (r RenderConfig) Params() (render.Params, error) {
	p := render.DefaultParams()
	if r.Falloff != "" {
		f, err := render.ParseFalloff(r.Falloff)
		if err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		p.Falloff = f
	}
	if r.K != 0 {
		p.K = r.K
	}
	if r.Knee != 0 {
		p.Knee = r.Knee
	}
	if r.MaxPointSize != 0 {
		p.MaxPointSize = r.MaxPointSize
	}
	if r.MinLum != 0 {
		p.MinLum = r.MinLum
	}
	if r.BatchCap != 0 {
		p.BatchCap = r.BatchCap
	}
	if r.Fade != 0 {
		p.Fade = r.Fade
	}
	if r.Seed != 0 {
		p.Seed = r.Seed
	}
	if r.K < 0 || r.MaxPointSize < 0 || r.BatchCap < 0 || r.Fade < 0 || r.Fade > 1 {
		return p, fmt.Errorf("%w: render parameters out of range", ErrInvalid)
	}
	if r.Background != "" {
		c, err := ParseColor(r.Background)
		if err != nil {
			return p, err
		}
		p.Background = c
	}
	return p, nil
}

// ParseColor reads "#RRGGBB".
func ParseColor(s string) (render.Color, error) {
	h := strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil || len(h) != 6 {
		return render.Color{}, fmt.Errorf("%w: color %q", ErrInvalid, s)
	}
	return render.RGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

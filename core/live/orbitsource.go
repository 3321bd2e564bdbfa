package live

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// OrbitConfig describes a synthetic system of bodies on circular orbits.
type OrbitConfig struct {
	Bodies int
	// Steps bounds the stream; zero runs until cancelled.
	Steps int
	// Dt is the simulated time between frames.
	Dt float64
	// Rate paces frame production in frames per second; zero is unpaced.
	Rate float64
	Seed int64
	// Label names the first body when non-empty.
	Label string
}

// Attributes carried by every orbit record.
const (
	OrbitAttrIndex = iota
	OrbitAttrRadius
	OrbitAttrSpeed
	orbitAttrs
)

// OrbitAttrNames lists the attribute names in index order.
var OrbitAttrNames = []string{"index", "radius", "speed"}

type body struct {
	radius, phase, omega float64
	incl, node           float64
	mass                 float32
}

// OrbitSource generates frames of bodies on circular, inclined orbits.
type OrbitSource struct {
	*feed
	cfg OrbitConfig

	mu     sync.Mutex
	bodies []body
	step   int
	last   float64
	dt     float64
	tick   *time.Ticker
}

// NewOrbitSource creates a synthetic source.
func NewOrbitSource(name string, env Env, opts GateOptions, cfg OrbitConfig) *OrbitSource {
	if cfg.Bodies <= 0 {
		cfg.Bodies = 1000
	}
	if cfg.Dt <= 0 {
		cfg.Dt = 0.05
	}
	s := &OrbitSource{cfg: cfg, dt: cfg.Dt}
	rng := rand.New(rand.NewSource(cfg.Seed))
	s.bodies = make([]body, cfg.Bodies)
	for i := range s.bodies {
		r := 0.2 + 2*rng.Float64()
		s.bodies[i] = body{
			radius: r,
			phase:  2 * math.Pi * rng.Float64(),
			omega:  1 / math.Sqrt(r*r*r),
			incl:   0.3 * (rng.Float64() - 0.5),
			node:   2 * math.Pi * rng.Float64(),
			mass:   float32(0.5 + rng.ExpFloat64()),
		}
	}
	if cfg.Rate > 0 {
		s.tick = time.NewTicker(time.Duration(float64(time.Second) / cfg.Rate))
	}
	s.feed = newFeed(name, "orbit", env, opts, s, "dt <seconds>   set the simulated time step")
	return s
}

// FrameAt computes the system at time t.
func (s *OrbitSource) FrameAt(t float64) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := NewFrame(t, orbitAttrs)
	f.Pos = make([]float32, 0, 3*len(s.bodies))
	f.Size = make([]float32, 0, len(s.bodies))
	f.Attr = make([]float32, 0, orbitAttrs*len(s.bodies))
	for i, b := range s.bodies {
		a := b.phase + b.omega*t
		x, y := b.radius*math.Cos(a), b.radius*math.Sin(a)
		// Tilt the orbit plane by incl about the line of nodes.
		ci, si := math.Cos(b.incl), math.Sin(b.incl)
		cn, sn := math.Cos(b.node), math.Sin(b.node)
		y, z := y*ci, y*si
		x, y = x*cn-y*sn, x*sn+y*cn
		f.Pos = append(f.Pos, float32(x), float32(z), float32(y))
		f.Size = append(f.Size, b.mass)
		f.Attr = append(f.Attr, float32(i), float32(b.radius), float32(b.omega*b.radius))
	}
	if s.cfg.Label != "" && len(s.bodies) > 0 {
		f.AddLabel(f.Pos[0], f.Pos[1], f.Pos[2], s.cfg.Label)
	}
	return f
}

func (s *OrbitSource) next(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	if s.cfg.Steps > 0 && s.step >= s.cfg.Steps {
		s.mu.Unlock()
		return nil, io.EOF
	}
	t := 0.0
	if s.step > 0 {
		t = s.last + s.dt
	}
	s.step++
	s.last = t
	s.mu.Unlock()

	if s.tick != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.tick.C:
		}
	}
	return s.FrameAt(t), nil
}

func (s *OrbitSource) rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = 0
	s.last = 0
	return nil
}

func (s *OrbitSource) custom(args []string) error {
	if len(args) == 2 && args[0] == "dt" {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("live: bad dt %q", args[1])
		}
		s.mu.Lock()
		s.dt = v
		s.mu.Unlock()
		return nil
	}
	return errUnknownCommand(args)
}

func (s *OrbitSource) close() error {
	if s.tick != nil {
		s.tick.Stop()
	}
	return nil
}

// Package engine ties the speck store, live sources, the appearance pipeline
// and the renderer together behind one consumer API.
package engine

import (
	"log/slog"

	"specks/core/live"
	"specks/core/metrics"
	"specks/core/sel"
	"specks/core/services/logger"
	"specks/core/store"
	"specks/kernel"
)

// Context carries every piece of shared engine state. Nothing in the engine
// reaches for process globals; components get what they need from here.
type Context struct {
	Log      *slog.Logger
	Reporter *logger.Reporter
	Metrics  *metrics.Metrics
	Clock    *kernel.Clock
	Arena    *store.Arena
	Store    *store.Store
	Names    *sel.Names
}

// Options configures NewContext. Zero fields get working defaults.
type Options struct {
	Log     *slog.Logger
	Metrics *metrics.Metrics
	Store   store.Config
}

// NewContext builds a context with a fresh clock, arena, store and name table.
func NewContext(o Options) *Context {
	log := o.Log
	if log == nil {
		log = logger.Discard()
	}
	clock := kernel.NewClock()
	arena := store.NewArena(o.Store.WarmLists)
	return &Context{
		Log:      log,
		Reporter: logger.NewReporter(log),
		Metrics:  o.Metrics,
		Clock:    clock,
		Arena:    arena,
		Store:    store.New(o.Store, clock, arena),
		Names:    sel.NewNames(),
	}
}

// report hands err to the one-shot reporter and counts it.
func (c *Context) report(scope string, err error) {
	kind := live.Kind(err)
	c.Reporter.Report(scope, kind, err)
	c.Metrics.Reported(kind)
}

// LiveEnv returns the environment live sources are constructed with.
func (c *Context) LiveEnv() live.Env {
	return live.Env{
		Log:      c.Log,
		Reporter: c.Reporter,
		Metrics:  c.Metrics,
		Arena:    c.Arena,
	}
}

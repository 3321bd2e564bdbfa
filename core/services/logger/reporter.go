package logger

import (
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// Report is one recorded failure.
type Report struct {
	Scope string
	Kind  string
	Err   error
}

// Reporter logs each (scope, kind) failure once until the scope recovers.
//
// Failures in the engine degrade to stale visuals; callers report on every
// occurrence and the reporter keeps the log from repeating per frame.
type Reporter struct {
	log *slog.Logger

	// OnReport, if set, observes every report including suppressed ones.
	OnReport func(r Report, logged bool)

	mu    sync.Mutex
	once  map[string]*rate.Sometimes
	last  Report
	count int
}

func NewReporter(log *slog.Logger) *Reporter {
	if log == nil {
		log = Discard()
	}
	return &Reporter{log: log, once: make(map[string]*rate.Sometimes)}
}

// Report records err under scope and kind and reports whether it was logged.
func (r *Reporter) Report(scope, kind string, err error) bool {
	if r == nil || err == nil {
		return false
	}
	rep := Report{Scope: scope, Kind: kind, Err: err}

	r.mu.Lock()
	key := scope + "\x00" + kind
	s, ok := r.once[key]
	if !ok {
		s = &rate.Sometimes{First: 1}
		r.once[key] = s
	}
	logged := false
	s.Do(func() { logged = true })
	r.last = rep
	r.count++
	hook := r.OnReport
	r.mu.Unlock()

	if logged {
		r.log.Warn("degraded", "scope", scope, "kind", kind, "err", err)
	}
	if hook != nil {
		hook(rep, logged)
	}
	return logged
}

// Recover re-arms every kind under scope so a later failure is logged again.
func (r *Reporter) Recover(scope string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := scope + "\x00"
	for k := range r.once {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(r.once, k)
		}
	}
}

// Last returns the most recent report, logged or not.
func (r *Reporter) Last() (Report, bool) {
	if r == nil {
		return Report{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.count > 0
}

// Count returns the number of reports seen.
func (r *Reporter) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

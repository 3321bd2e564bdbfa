package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"specks/core/metrics"
	"specks/core/render"
	"specks/core/services/logger"
	"specks/core/store"
	"specks/kernel"
)

// Env carries the shared services a source reports through.
type Env struct {
	Log      *slog.Logger
	Reporter *logger.Reporter
	Metrics  *metrics.Metrics
	Arena    *store.Arena
}

// producer is the per-kind half of a feed: it delivers frames one at a time
// and reacts to stream commands. next returns errIdle when nothing arrived
// within one poll interval so the feed can service its mailbox.
type producer interface {
	next(ctx context.Context) (*Frame, error)
	rewind() error
	custom(args []string) error
	close() error
}

// feed implements Source on top of a Gate and a producer.
type feed struct {
	name string
	id   uuid.UUID
	kind string
	help string

	gate *Gate
	mb   *kernel.Mailbox
	env  Env
	log  *slog.Logger
	prod producer

	backoff time.Duration

	paused    atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once
	frames    atomic.Uint64
}

const (
	pausePoll  = 50 * time.Millisecond
	maxBackoff = 5 * time.Second
)

var baseHelp = strings.Join([]string{
	"pause           stop polling the source",
	"resume          resume polling",
	"rewind          drop delivered frames and restart from the beginning",
	"reload          same as rewind",
}, "\n")

func newFeed(name, kind string, env Env, opts GateOptions, prod producer, help string) *feed {
	if env.Log == nil {
		env.Log = logger.Discard()
	}
	id := uuid.New()
	f := &feed{
		name:    name,
		id:      id,
		kind:    kind,
		help:    help,
		gate:    NewGate(env.Arena, opts),
		mb:      kernel.NewMailbox(),
		env:     env,
		prod:    prod,
		backoff: 100 * time.Millisecond,
	}
	f.log = env.Log.With("source", name, "kind", kind, "id", id.String())
	return f
}

// Name returns the source's configured name.
func (f *feed) Name() string { return f.name }

// ID returns the source instance id.
func (f *feed) ID() uuid.UUID { return f.id }

// Gate exposes the frame index.
func (f *feed) Gate() *Gate { return f.gate }

// Frames returns the number of frames appended so far.
func (f *feed) Frames() uint64 { return f.frames.Load() }

// Paused reports whether polling is suspended.
func (f *feed) Paused() bool { return f.paused.Load() }

func (f *feed) report(err error) {
	kind := Kind(err)
	f.env.Reporter.Report(f.name, kind, err)
	f.env.Metrics.Reported(kind)
}

func (f *feed) GetFrame(view ViewID, t float64) *store.Specklist {
	if f.closed.Load() {
		return nil
	}
	snap, out, err := f.gate.GetFrame(view, t)
	f.env.Metrics.Snapshot(out.String())
	if err != nil {
		f.report(err)
		return nil
	}
	return snap
}

func (f *feed) TimeRange() (tmin, tmax float64, ok bool) { return f.gate.TimeRange() }

// Control queues a command for the producer goroutine. Commands are applied
// between frames.
func (f *feed) Control(ctx context.Context, args []string) error {
	if f.closed.Load() {
		return ErrClosed
	}
	if len(args) == 0 {
		return fmt.Errorf("live: %s: empty command", f.name)
	}
	var kind kernel.CommandKind
	switch args[0] {
	case "pause":
		kind = kernel.CmdPause
	case "resume":
		kind = kernel.CmdResume
	case "rewind":
		kind = kernel.CmdRewind
	case "reload":
		kind = kernel.CmdReload
	default:
		return f.mb.Send(ctx, kernel.NewCommand(kernel.CmdCustom, args...))
	}
	return f.mb.Send(ctx, kernel.NewCommand(kind, args[1:]...))
}

// Draw labels the view with the source status while it is paused.
func (f *feed) Draw(dc DrawContext) {
	lt, ok := dc.Target.(render.LabelTarget)
	if !ok || !f.paused.Load() {
		return
	}
	lt.DrawLabel(2, 8, f.name+": paused", render.RGB(0xFF, 0xDD, 0x66))
}

func (f *feed) Help() string {
	if f.help == "" {
		return baseHelp
	}
	return baseHelp + "\n" + f.help
}

func (f *feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		f.closed.Store(true)
		err = f.prod.close()
	})
	return err
}

func (f *feed) apply(cmd kernel.Command) {
	switch cmd.Kind {
	case kernel.CmdPause:
		f.paused.Store(true)
	case kernel.CmdResume:
		f.paused.Store(false)
	case kernel.CmdRewind, kernel.CmdReload:
		f.gate.Reset()
		if err := f.prod.rewind(); err != nil {
			f.report(err)
		}
	case kernel.CmdCustom:
		if err := f.prod.custom(cmd.Args()); err != nil {
			f.log.Warn("command failed", "cmd", strings.Join(cmd.Args(), " "), "err", err)
		}
	}
	f.log.Debug("command", "kind", cmd.Kind.String())
}

// Run is the producer loop. It checks for cancellation and pending commands
// between frames, so shutdown never waits for the end of the stream.
func (f *feed) Run(ctx context.Context) error {
	f.log.Info("source started")
	defer f.log.Info("source stopped", "frames", f.frames.Load())

	backoff := f.backoff
	failing := false
	for {
		if ctx.Err() != nil || f.closed.Load() {
			return nil
		}
		f.mb.Drain(f.apply)
		if f.paused.Load() {
			if !sleep(ctx, pausePoll) {
				return nil
			}
			continue
		}

		fr, err := f.prod.next(ctx)
		switch {
		case err == nil || fr != nil && errors.Is(err, store.ErrOverflow):
			if err != nil {
				f.report(err)
			}
			if aerr := f.gate.Append(fr); aerr != nil {
				f.report(aerr)
				continue
			}
			f.frames.Add(1)
			f.env.Metrics.FrameIngested(f.name)
			if failing {
				f.log.Info("source recovered")
				f.env.Reporter.Recover(f.name)
				failing = false
			}
			backoff = f.backoff
		case errors.Is(err, errIdle):
		case errors.Is(err, io.EOF):
			f.log.Info("end of stream")
			return nil
		case ctx.Err() != nil || f.closed.Load():
			return nil
		case errors.Is(err, ErrMalformedRecord):
			f.report(err)
		default:
			if !errors.Is(err, ErrSourceUnavailable) {
				err = fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
			}
			f.report(err)
			failing = true
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = min(2*backoff, maxBackoff)
		}
	}
}

// sleep waits d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

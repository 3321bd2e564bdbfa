package live

import (
	"context"
	"time"
)

const idlePoll = 100 * time.Millisecond

// ChanSource serves frames pushed by the caller. It suits small synchronous
// producers that already hold decoded frames.
type ChanSource struct {
	*feed
	ch   chan *Frame
	done chan struct{}
}

// NewChanSource creates a push source with room for buffer queued frames.
func NewChanSource(name string, env Env, opts GateOptions, buffer int) *ChanSource {
	s := &ChanSource{ch: make(chan *Frame, buffer), done: make(chan struct{})}
	s.feed = newFeed(name, "chan", env, opts, s, "")
	return s
}

// Push queues f for the producer loop, blocking while the queue is full.
func (s *ChanSource) Push(ctx context.Context, f *Frame) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	case s.ch <- f:
		return nil
	}
}

func (s *ChanSource) next(ctx context.Context) (*Frame, error) {
	t := time.NewTimer(idlePoll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrClosed
	case f := <-s.ch:
		return f, nil
	case <-t.C:
		return nil, errIdle
	}
}

func (s *ChanSource) rewind() error { return nil }

func (s *ChanSource) custom(args []string) error { return errUnknownCommand(args) }

func (s *ChanSource) close() error {
	close(s.done)
	return nil
}

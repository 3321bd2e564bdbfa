package live

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirConfig configures a directory source.
type DirConfig struct {
	Dir string
	// Pattern selects frame files by base name; default "*.frames".
	Pattern string
	// Debounce waits for writes to settle before reading; default 100ms.
	Debounce time.Duration
}

type fileState struct {
	size  int64
	mtime time.Time
	// frames counts the frames already delivered.
	frames int
	// tail is the file's last frame, held back until a later frame follows
	// it or the file stops changing.
	tail *Frame
}

// DirSource follows a directory of text frame files written by a running
// simulation. Files are read in name order; a file that grows is re-read
// and only its new frames are delivered. Only complete lines are parsed, and
// the last frame of a file is delivered once it can no longer change.
type DirSource struct {
	*feed
	cfg     DirConfig
	watcher *fsnotify.Watcher

	// Touched only by the producer goroutine.
	files     map[string]*fileState
	pending   []*Frame
	dirty     bool
	lastEvent time.Time
}

// NewDirSource starts watching cfg.Dir.
func NewDirSource(name string, env Env, opts GateOptions, cfg DirConfig) (*DirSource, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = "*.frames"
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if _, err := filepath.Match(cfg.Pattern, ""); err != nil {
		return nil, fmt.Errorf("live: bad pattern %q: %w", cfg.Pattern, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	if err := w.Add(cfg.Dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: watch %s: %v", ErrSourceUnavailable, cfg.Dir, err)
	}
	s := &DirSource{
		cfg:     cfg,
		watcher: w,
		files:   make(map[string]*fileState),
		dirty:   true,
	}
	s.feed = newFeed(name, "dir", env, opts, s, "")
	return s, nil
}

func (s *DirSource) match(path string) bool {
	ok, _ := filepath.Match(s.cfg.Pattern, filepath.Base(path))
	return ok
}

func (s *DirSource) pop() *Frame {
	if len(s.pending) == 0 {
		return nil
	}
	f := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return f
}

func (s *DirSource) next(ctx context.Context) (*Frame, error) {
	if f := s.pop(); f != nil {
		return f, nil
	}
	if s.dirty && time.Since(s.lastEvent) >= s.cfg.Debounce {
		s.dirty = false
		s.scan()
		if f := s.pop(); f != nil {
			return f, nil
		}
	}

	wait := idlePoll
	if s.dirty {
		wait = max(s.cfg.Debounce-time.Since(s.lastEvent), 0)
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ev, ok := <-s.watcher.Events:
		if !ok {
			return nil, ErrClosed
		}
		if s.match(ev.Name) && ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
			s.dirty = true
			s.lastEvent = time.Now()
		}
		return nil, errIdle
	case err, ok := <-s.watcher.Errors:
		if !ok {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("%w: watch %s: %v", ErrSourceUnavailable, s.cfg.Dir, err)
	case <-t.C:
		return nil, errIdle
	}
}

// scan queues the frames of new or grown files.
func (s *DirSource) scan() {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		s.report(fmt.Errorf("%w: %v", ErrSourceUnavailable, err))
		return
	}
	for _, e := range entries {
		if e.IsDir() || !s.match(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		st := s.files[e.Name()]
		if st == nil {
			st = &fileState{}
			s.files[e.Name()] = st
		}
		if st.size == info.Size() && st.mtime.Equal(info.ModTime()) {
			// Unchanged for a whole debounce: the held frame is final.
			if st.tail != nil {
				s.pending = append(s.pending, st.tail)
				st.tail = nil
				st.frames++
			}
			continue
		}
		frames, err := s.readFile(filepath.Join(s.cfg.Dir, e.Name()))
		if err != nil {
			s.report(err)
			continue
		}
		st.size, st.mtime = info.Size(), info.ModTime()
		st.tail = nil
		if n := len(frames); n > st.frames {
			s.pending = append(s.pending, frames[st.frames:n-1]...)
			st.frames = n - 1
			st.tail = frames[n-1]
		}
		if st.tail != nil {
			// Look again after the debounce. Later files wait so frames
			// stay in time order.
			s.dirty = true
			s.lastEvent = time.Now()
			break
		}
	}
}

// readFile decodes the complete lines of path. A trailing line without a
// newline is still being written and is left for the next read.
func (s *DirSource) readFile(path string) ([]*Frame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	data = data[:bytes.LastIndexByte(data, '\n')+1]
	dec := NewTextDecoder(bytes.NewReader(data))
	dec.OnMalformed = func(err error) {
		s.report(fmt.Errorf("%s: %w", filepath.Base(path), err))
	}
	var frames []*Frame
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
	}
}

func (s *DirSource) rewind() error {
	clear(s.files)
	clear(s.pending)
	s.pending = s.pending[:0]
	s.dirty = true
	s.lastEvent = time.Time{}
	return nil
}

func (s *DirSource) custom(args []string) error { return errUnknownCommand(args) }

func (s *DirSource) close() error { return s.watcher.Close() }

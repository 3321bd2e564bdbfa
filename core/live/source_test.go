package live

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specks/core/services/logger"
	"specks/core/store"
)

type lines struct {
	mu sync.Mutex
	l  []string
}

func (c *lines) WriteLineString(s string) { c.WriteLineBytes([]byte(s)) }
func (c *lines) WriteLineBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l = append(c.l, string(b))
}
func (c *lines) count(sub string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.l {
		if strings.Contains(s, sub) {
			n++
		}
	}
	return n
}

func testEnv() (Env, *lines) {
	out := &lines{}
	log := logger.New(out, slog.LevelInfo)
	return Env{Log: log, Reporter: logger.NewReporter(log), Arena: store.NewArena(0)}, out
}

func runAsync(ctx context.Context, r Runner) <-chan error {
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func TestOrbitSourceRunsToEnd(t *testing.T) {
	env, _ := testEnv()
	s := NewOrbitSource("orbit", env, GateOptions{}, OrbitConfig{Bodies: 50, Steps: 5, Dt: 0.1, Label: "star0"})
	defer s.Close()

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 5, s.Gate().Len())
	tmin, tmax, ok := s.TimeRange()
	require.True(t, ok)
	assert.Equal(t, 0.0, tmin)
	assert.InDelta(t, 0.4, tmax, 1e-9)

	snap := s.GetFrame(0, tmax)
	require.NotNil(t, snap)
	assert.Equal(t, 50, snap.Len())
	assert.Equal(t, len(OrbitAttrNames), snap.NAttr)
	require.NotNil(t, snap.Next())
	assert.Equal(t, []string{"star0"}, snap.Next().Titles)
}

func TestOrbitSourceCancelIsPrompt(t *testing.T) {
	env, _ := testEnv()
	s := NewOrbitSource("orbit", env, GateOptions{Mode: BuildDetached}, OrbitConfig{Bodies: 10, Rate: 200})
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)
	require.Eventually(t, func() bool { return s.Gate().Len() > 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestOrbitSourceRewindAndCustom(t *testing.T) {
	env, _ := testEnv()
	s := NewOrbitSource("orbit", env, GateOptions{}, OrbitConfig{Bodies: 3, Steps: 3})
	defer s.Close()
	require.NoError(t, s.Run(context.Background()))

	ctx := context.Background()
	require.NoError(t, s.Control(ctx, []string{"dt", "1"}))
	require.NoError(t, s.Control(ctx, []string{"rewind"}))
	require.NoError(t, s.Run(ctx))
	_, tmax, ok := s.TimeRange()
	require.True(t, ok)
	assert.Equal(t, 2.0, tmax)
	assert.Contains(t, s.Help(), "dt <seconds>")
}

func TestChanSourcePauseResume(t *testing.T) {
	env, _ := testEnv()
	s := NewChanSource("push", env, GateOptions{}, 4)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, s)

	require.NoError(t, s.Control(ctx, []string{"pause"}))
	require.Eventually(t, s.Paused, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Push(ctx, frameOf(0, 1, 0)))
	time.Sleep(150 * time.Millisecond)
	assert.Zero(t, s.Gate().Len(), "paused source must not poll")

	require.NoError(t, s.Control(ctx, []string{"resume"}))
	require.Eventually(t, func() bool { return s.Gate().Len() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestChanSourceSkipsMalformedFrames(t *testing.T) {
	env, out := testEnv()
	s := NewChanSource("push", env, GateOptions{}, 8)
	defer s.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, s)

	require.NoError(t, s.Push(ctx, &Frame{Time: 0, Pos: []float32{1}}))
	require.NoError(t, s.Push(ctx, &Frame{Time: 1, Pos: []float32{1, 2}}))
	require.NoError(t, s.Push(ctx, frameOf(2, 3, 1)))
	require.Eventually(t, func() bool { return s.Gate().Len() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, out.count("malformed-record"), "malformed records are logged once")

	cancel()
	<-done
}

func TestGetFrameOutOfRangeReportsOnce(t *testing.T) {
	env, out := testEnv()
	s := NewChanSource("push", env, GateOptions{}, 1)
	defer s.Close()
	require.NoError(t, s.Gate().Append(frameOf(0, 1, 0)))

	for i := 0; i < 5; i++ {
		assert.Nil(t, s.GetFrame(0, 42))
	}
	assert.Equal(t, 1, out.count("concurrency-violation"))
	assert.Equal(t, 5, env.Reporter.Count())
}

func TestClosedSourceRejectsCommands(t *testing.T) {
	env, _ := testEnv()
	s := NewChanSource("push", env, GateOptions{}, 1)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, errors.Is(s.Control(context.Background(), []string{"pause"}), ErrClosed))
	assert.True(t, errors.Is(s.Push(context.Background(), frameOf(0, 1, 0)), ErrClosed))
}

func writeFrames(t *testing.T, path string, frames ...*Frame) {
	t.Helper()
	fh, err := os.Create(path)
	require.NoError(t, err)
	defer fh.Close()
	for _, f := range frames {
		require.NoError(t, EncodeText(fh, f))
	}
}

func TestDirSourceFollowsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, filepath.Join(dir, "000.frames"), frameOf(0, 2, 0), frameOf(1, 2, 1))
	writeFrames(t, filepath.Join(dir, "ignored.txt"), frameOf(5, 2, 5))

	env, _ := testEnv()
	s, err := NewDirSource("dir", env, GateOptions{}, DirConfig{Dir: dir, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, s)

	require.Eventually(t, func() bool { return s.Gate().Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	writeFrames(t, filepath.Join(dir, "001.frames"), frameOf(2, 3, 2))
	require.Eventually(t, func() bool { return s.Gate().Len() == 3 }, 2*time.Second, 10*time.Millisecond)

	snap := s.GetFrame(0, 2)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Len())

	cancel()
	assert.NoError(t, <-done)
}

func TestDirSourceHoldsGrowingFrame(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "000.frames")
	appendText := func(text string) {
		t.Helper()
		fh, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		_, err = fh.WriteString(text)
		require.NoError(t, err)
		require.NoError(t, fh.Close())
	}

	env, _ := testEnv()
	s, err := NewDirSource("dir", env, GateOptions{}, DirConfig{Dir: dir})
	require.NoError(t, err)
	defer s.Close()

	appendText("# time 0\n1 2 3\n")
	s.scan()
	assert.Nil(t, s.pop(), "open frame delivered early")

	appendText("4 5 6\n7 8 9\n# time 1\n1 1")
	s.scan()
	f := s.pop()
	require.NotNil(t, f)
	assert.Equal(t, 0.0, f.Time)
	assert.Equal(t, 3, f.Len())
	assert.Nil(t, s.pop())

	appendText(" 1\n")
	s.scan()
	assert.Nil(t, s.pop())

	// No further growth: the last frame is final.
	s.scan()
	f = s.pop()
	require.NotNil(t, f)
	assert.Equal(t, 1.0, f.Time)
	require.Equal(t, 1, f.Len())
	assert.Equal(t, []float32{1, 1, 1}, f.Pos)

	s.scan()
	assert.Nil(t, s.pop())
}

func TestDirSourceMissingDir(t *testing.T) {
	env, _ := testEnv()
	_, err := NewDirSource("dir", env, GateOptions{}, DirConfig{Dir: filepath.Join(t.TempDir(), "nope")})
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestWSSourceReadsStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for i := 0; i < 3; i++ {
			if err := c.WriteMessage(websocket.BinaryMessage, EncodeWire(frameOf(float64(i), 4, float32(i)))); err != nil {
				return
			}
		}
		var buf strings.Builder
		_ = EncodeText(&buf, frameOf(3, 2, 3))
		_ = c.WriteMessage(websocket.TextMessage, []byte(buf.String()))
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	env, _ := testEnv()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewWSSource("ws", env, GateOptions{Mode: BuildDetached}, WSConfig{URL: url})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, 4, s.Gate().Len())
	snap := s.GetFrame(0, 1)
	require.NotNil(t, snap)
	assert.Equal(t, 4, snap.Len())
}

func TestWSSourceRewindReleasesBlockedReader(t *testing.T) {
	upgrader := websocket.Upgrader{}
	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for i := 0; i < 20; i++ {
			if err := c.WriteMessage(websocket.BinaryMessage, EncodeWire(frameOf(float64(i), 1, 0))); err != nil {
				return
			}
		}
		<-hold
	}))
	defer srv.Close()
	defer close(hold)

	env, _ := testEnv()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewWSSource("ws", env, GateOptions{}, WSConfig{URL: url})
	defer s.Close()

	c, err := s.dial(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(c.msgs) == cap(c.msgs) }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, s.rewind())
	select {
	case <-c.exited:
	case <-time.After(time.Second):
		t.Fatalf("reader still blocked after rewind")
	}
	assert.Nil(t, s.current())
}

func TestWSSourceUnavailableIsReported(t *testing.T) {
	env, out := testEnv()
	s := NewWSSource("ws", env, GateOptions{}, WSConfig{URL: "ws://127.0.0.1:1/none", HandshakeTimeout: 100 * time.Millisecond})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	assert.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, out.count("source-unavailable"))
	assert.GreaterOrEqual(t, env.Reporter.Count(), 1)
}

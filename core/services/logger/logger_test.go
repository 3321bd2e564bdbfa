package logger

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (c *captureLogger) WriteLineString(s string) { c.WriteLineBytes([]byte(s)) }

func (c *captureLogger) WriteLineBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, string(b))
}

func (c *captureLogger) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestNewWritesOneLinePerRecord(t *testing.T) {
	out := &captureLogger{}
	log := New(out, slog.LevelInfo)
	log.Info("frame", "t", 1.5)
	log.Debug("hidden")
	log.Warn("slow", "ms", 40)

	lines := out.Lines()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "msg=frame")
	assert.Contains(t, lines[0], "t=1.5")
	assert.Contains(t, lines[1], "level=WARN")
	for _, l := range lines {
		assert.False(t, strings.Contains(l, "\n"))
	}
}

func TestReporterLogsOncePerScopeAndKind(t *testing.T) {
	out := &captureLogger{}
	r := NewReporter(New(out, slog.LevelInfo))
	var seen, logged int
	r.OnReport = func(_ Report, l bool) {
		seen++
		if l {
			logged++
		}
	}

	err := errors.New("connection refused")
	for i := 0; i < 10; i++ {
		r.Report("stream", "source-unavailable", err)
	}
	assert.True(t, r.Report("stream", "malformed-record", err))
	assert.True(t, r.Report("files", "source-unavailable", err))

	assert.Equal(t, 12, seen)
	assert.Equal(t, 3, logged)
	assert.Len(t, out.Lines(), 3)

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "files", last.Scope)

	r.Recover("stream")
	assert.True(t, r.Report("stream", "source-unavailable", err))
	assert.False(t, r.Report("files", "source-unavailable", err))
}

func TestReporterIgnoresNilError(t *testing.T) {
	r := NewReporter(nil)
	assert.False(t, r.Report("x", "y", nil))
	_, ok := r.Last()
	assert.False(t, ok)
}

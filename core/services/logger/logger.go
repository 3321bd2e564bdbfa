// Package logger routes structured engine logs to a HAL line sink and
// deduplicates repeated failure reports.
package logger

import (
	"bytes"
	"io"
	"log/slog"
	"sync"

	"specks/hal"
)

// New returns a text slog logger writing one line per record to out.
// A nil out discards everything.
func New(out hal.Logger, level slog.Leveler) *slog.Logger {
	var w io.Writer = io.Discard
	if out != nil {
		w = &lineWriter{out: out}
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewText returns a text slog logger writing straight to w. Tools without a
// HAL use it.
func NewText(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lineWriter splits handler output into newline-delimited HAL writes.
type lineWriter struct {
	mu  sync.Mutex
	out hal.Logger
	buf []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.out.WriteLineBytes(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) == 0 {
		w.buf = w.buf[:0:0]
	}
	return len(p), nil
}

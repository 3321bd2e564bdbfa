package live

import (
	"errors"
	"fmt"
	"strings"

	"specks/core/store"
)

var (
	// ErrMalformedRecord reports a record or frame that could not be parsed.
	// The record is skipped and ingestion continues.
	ErrMalformedRecord = errors.New("live: malformed record")
	// ErrSourceUnavailable reports a file or socket failure. Consumers keep
	// the last good frame.
	ErrSourceUnavailable = errors.New("live: source unavailable")
	// ErrConcurrencyViolation reports an internal invariant break, such as a
	// frame requested outside the reported time range.
	ErrConcurrencyViolation = errors.New("live: concurrency violation")
	// ErrClosed is returned by operations on a closed source.
	ErrClosed = errors.New("live: source closed")

	// errIdle is returned by producers that had nothing to deliver within
	// one poll interval. It is never reported.
	errIdle = errors.New("live: idle")
)

// Kind names the error class of err for reporting and metrics.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformedRecord):
		return "malformed-record"
	case errors.Is(err, store.ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrConcurrencyViolation):
		return "concurrency-violation"
	case errors.Is(err, ErrSourceUnavailable):
		return "source-unavailable"
	case errors.Is(err, ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

func errUnknownCommand(args []string) error {
	return fmt.Errorf("live: unknown command %q", strings.Join(args, " "))
}

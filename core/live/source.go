package live

import (
	"context"

	"specks/core/render"
	"specks/core/store"
)

// DrawContext is handed to a source's Draw hook once per rendered view.
type DrawContext struct {
	View   ViewID
	Time   float64
	Target render.DrawTarget
	Camera render.Camera
}

// Source is a time-varying geometry provider.
//
// GetFrame must not block on producer I/O: without a valid snapshot it
// returns nil and the caller keeps its last good one.
type Source interface {
	// GetFrame returns the snapshot for view at time t, or nil.
	GetFrame(view ViewID, t float64) *store.Specklist
	// TimeRange reports the span of delivered frames.
	TimeRange() (tmin, tmax float64, ok bool)
	// Control applies a text command such as "pause" or "rewind".
	Control(ctx context.Context, args []string) error
	// Draw renders source-specific overlays.
	Draw(dc DrawContext)
	// Help describes the commands Control accepts.
	Help() string
	// Close stops the source and releases its resources.
	Close() error
}

// Runner is implemented by sources with a background producer. Run blocks
// until ctx is done, the stream ends or the source is closed.
type Runner interface {
	Run(ctx context.Context) error
}

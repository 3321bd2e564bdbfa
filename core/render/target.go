package render

// BlendMode selects how drawn points combine with the target.
type BlendMode uint8

const (
	BlendAlpha BlendMode = iota
	BlendAdditive
)

func (m BlendMode) String() string {
	if m == BlendAdditive {
		return "additive"
	}
	return "alpha"
}

// BlendState is the per-frame compositing policy.
type BlendState struct {
	Mode       BlendMode
	DepthWrite bool
	DepthTest  bool
}

// PointVertex is one projected point: X and Y in pixels, Z is depth in [0, 1].
type PointVertex struct {
	X, Y, Z float32
	RGBA    uint32
}

// DrawTarget receives batched point draws.
//
// DrawPoints is one draw call; every point in it has the same pixel size.
// MaxBatch reports the largest batch the target accepts in one call, or 0
// for no limit.
type DrawTarget interface {
	Size() (w, h int)
	Clear(c Color)
	SetBlend(b BlendState)
	DrawPoints(size int, pts []PointVertex)
	MaxBatch() int
}

// LabelTarget is implemented by targets that can draw text.
type LabelTarget interface {
	DrawLabel(x, y int, s string, c Color)
}

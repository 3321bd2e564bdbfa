package live

// State is a source binding's tri-state.
type State uint8

const (
	// Absent means no source is bound.
	Absent State = iota
	// Disabled keeps the source and its settings but stops polling.
	Disabled
	// Enabled polls and serves frames.
	Enabled
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Disabled:
		return "disabled"
	case Enabled:
		return "enabled"
	default:
		return "unknown"
	}
}

// ViewID names a display context. Each view owns its own snapshot buffers.
type ViewID int

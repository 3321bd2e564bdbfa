// Package sel implements the selection algebra: a 32-bit mask per record and
// composable ops that either query those bits or paint them.
package sel

import "fmt"

// Mask tags one record with up to 32 boolean properties.
type Mask uint32

// Mode says how an Op is used.
type Mode uint8

const (
	// ModeNone disables the op: it matches nothing and paints nothing.
	ModeNone Mode = iota
	// ModeUse marks a read predicate.
	ModeUse
	// ModeDest marks a write target.
	ModeDest
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeUse:
		return "use"
	case ModeDest:
		return "dest"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Op is a predicate or an assignment over mask bits.
//
// Wanted holds the bits whose state matters and Wanton the value each of them
// must have. In ModeDest, Wanton bits outside Wanted are toggle bits: painting
// flips them.
type Op struct {
	Wanted Mask
	Wanton Mask
	Mode   Mode
}

var (
	// All matches every record.
	All = Op{Mode: ModeUse}
	// Off matches no record.
	Off = Op{Mode: ModeNone}
)

// Bit returns the op that requires bit n to be on.
func Bit(n int, mode Mode) Op {
	if n < 0 || n > 31 {
		return Op{Mode: mode}
	}
	b := Mask(1) << uint(n)
	return Op{Wanted: b, Wanton: b, Mode: mode}
}

// Matches reports whether m satisfies op.
// An empty Wanted matches everything; ModeNone matches nothing.
func Matches(m Mask, op Op) bool {
	if op.Mode == ModeNone {
		return false
	}
	return (m^op.Wanton)&op.Wanted == 0
}

// Set paints op onto m: forced bits take their Wanton value, toggle bits flip.
func Set(m Mask, op Op) Mask {
	if op.Mode == ModeNone {
		return m
	}
	forced := (m &^ op.Wanted) | (op.Wanton & op.Wanted)
	return forced ^ (op.Wanton &^ op.Wanted)
}

// Unset paints the inverse of op onto m: forced bits take the opposite of
// their Wanton value, toggle bits flip.
func Unset(m Mask, op Op) Mask {
	return Set(m, Invert(op))
}

// Invert returns the op whose forced bits are complemented.
// Toggle bits are left alone.
func Invert(op Op) Op {
	op.Wanton ^= op.Wanted
	return op
}

// Toggles returns the toggle bits of a paint op.
func (op Op) Toggles() Mask {
	return op.Wanton &^ op.Wanted
}

// WellFormed reports whether op has no toggle bits, which is what makes the
// query and paint forms convertible without loss.
func (op Op) WellFormed() bool {
	return op.Toggles() == 0
}

// DestToSource turns a paint op into the query that matches what it paints.
// Toggle bits carry no fixed value and are dropped.
func DestToSource(op Op) Op {
	if op.Mode == ModeNone {
		return op
	}
	return Op{Wanted: op.Wanted, Wanton: op.Wanton & op.Wanted, Mode: ModeUse}
}

// SourceToDest turns a query into the paint op that makes records match it.
func SourceToDest(op Op) Op {
	if op.Mode == ModeNone {
		return op
	}
	return Op{Wanted: op.Wanted, Wanton: op.Wanton & op.Wanted, Mode: ModeDest}
}

// Apply paints dest on every mask matching src and returns how many masks
// changed.
func Apply(masks []Mask, dest, src Op) int {
	if dest.Mode == ModeNone || src.Mode == ModeNone {
		return 0
	}
	changed := 0
	for i, m := range masks {
		if !Matches(m, src) {
			continue
		}
		if n := Set(m, dest); n != m {
			masks[i] = n
			changed++
		}
	}
	return changed
}

// Count returns how many masks match op.
func Count(masks []Mask, op Op) int {
	if op.Mode == ModeNone {
		return 0
	}
	n := 0
	for _, m := range masks {
		if Matches(m, op) {
			n++
		}
	}
	return n
}

package sel

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

const (
	// ThresholdBit is set by the threshold tagger.
	ThresholdBit = 31
	// PickBit marks records chosen interactively.
	PickBit = 30
	// UserBits is the number of user-assignable bits (0..UserBits-1).
	UserBits = 30
)

// Fixed slot names.
const (
	NameThreshold = "threshold"
	NamePick      = "pick"
	NameAll       = "all"
	NameOff       = "off"
)

var (
	ErrNoFreeBits = errors.New("sel: no free selection bits")
	ErrBadName    = errors.New("sel: invalid selection name")
	ErrUnknown    = errors.New("sel: unknown selection name")
)

// Names maps selection names to mask bits.
//
// User names are assigned to the lowest free bit on first use. Lookups are
// case-insensitive.
type Names struct {
	mu   sync.RWMutex
	bits [UserBits]string
}

// NewNames creates an empty name table.
func NewNames() *Names {
	return &Names{}
}

// Bit returns the bit for name, allocating a free one when create is set.
// The fixed names all and off have no bit and return -1.
func (t *Names) Bit(name string, create bool) (int, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !validName(name) {
		return -1, fmt.Errorf("%w: %q", ErrBadName, name)
	}
	switch name {
	case NameThreshold:
		return ThresholdBit, nil
	case NamePick:
		return PickBit, nil
	case NameAll, NameOff:
		return -1, nil
	}

	t.mu.RLock()
	for i, n := range t.bits {
		if n == name {
			t.mu.RUnlock()
			return i, nil
		}
	}
	t.mu.RUnlock()
	if !create {
		return -1, fmt.Errorf("%w: %q", ErrUnknown, name)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	free := -1
	for i, n := range t.bits {
		if n == name {
			return i, nil
		}
		if n == "" && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return -1, ErrNoFreeBits
	}
	t.bits[free] = name
	return free, nil
}

// Name returns the name bound to bit, or "" when the bit is unassigned.
func (t *Names) Name(bit int) string {
	switch bit {
	case ThresholdBit:
		return NameThreshold
	case PickBit:
		return NamePick
	}
	if bit < 0 || bit >= UserBits {
		return ""
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bits[bit]
}

// Release frees the bit bound to name so it can be reassigned.
func (t *Names) Release(name string) bool {
	name = strings.ToLower(strings.TrimSpace(name))
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, n := range t.bits {
		if n == name {
			t.bits[i] = ""
			return true
		}
	}
	return false
}

// Assigned returns the assigned user names indexed by bit.
func (t *Names) Assigned() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, n := range t.bits {
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func validName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

package kernel

import "sync/atomic"

// Published is a single-value publication slot.
//
// A writer builds a value privately and publishes it with one atomic swap;
// readers load the latest pointer together with its sequence number and can
// compare sequences to detect a newer value without taking a lock.
type Published[T any] struct {
	seq atomic.Uint64
	p   atomic.Pointer[T]
}

// Publish installs v and bumps the sequence counter.
func (b *Published[T]) Publish(v *T) uint64 {
	b.p.Store(v)
	return b.seq.Add(1)
}

// Load returns the last published value and its sequence number.
func (b *Published[T]) Load() (v *T, seq uint64) {
	seq = b.seq.Load()
	return b.p.Load(), seq
}

// Seq returns the current sequence number.
func (b *Published[T]) Seq() uint64 {
	return b.seq.Load()
}

package store

import (
	"sort"
	"sync"
)

// DefaultWarmLists is the default number of idle lists an arena keeps.
const DefaultWarmLists = 64

// Arena recycles specklist buffers.
//
// Reclaimed lists go to a warm pool sorted by capacity; Get hands out the
// smallest warm list large enough, or allocates a new one.
type Arena struct {
	mu      sync.Mutex
	warm    []*Specklist
	maxWarm int

	allocs int
	reuses int
}

// NewArena creates an arena keeping at most maxWarm idle lists.
func NewArena(maxWarm int) *Arena {
	if maxWarm <= 0 {
		maxWarm = DefaultWarmLists
	}
	return &Arena{maxWarm: maxWarm}
}

// Get returns an empty list for nattr attributes with room for capacity
// records.
func (a *Arena) Get(nattr, capacity int) *Specklist {
	if a == nil {
		return NewList(nattr, capacity)
	}
	a.mu.Lock()
	i := sort.Search(len(a.warm), func(i int) bool { return a.warm[i].Cap() >= capacity })
	if i < len(a.warm) {
		l := a.warm[i]
		a.warm = append(a.warm[:i], a.warm[i+1:]...)
		a.reuses++
		a.mu.Unlock()

		l.NAttr = clampAttrs(nattr)
		if cap(l.Attr) < l.NAttr*l.Cap() {
			l.Attr = make([]float32, 0, l.NAttr*l.Cap())
		}
		l.Titles = nil
		l.Reset()
		return l
	}
	a.allocs++
	a.mu.Unlock()
	return NewList(nattr, capacity)
}

// GetLabels returns an empty label list.
func (a *Arena) GetLabels(capacity int) *Specklist {
	l := a.Get(0, capacity)
	l.Titles = make([]string, 0, l.Cap())
	return l
}

// Put returns a list to the warm pool. The caller must own l exclusively.
func (a *Arena) Put(l *Specklist) {
	if a == nil || l == nil {
		return
	}
	l.Reset()
	a.mu.Lock()
	defer a.mu.Unlock()
	i := sort.Search(len(a.warm), func(i int) bool { return a.warm[i].Cap() >= l.Cap() })
	a.warm = append(a.warm, nil)
	copy(a.warm[i+1:], a.warm[i:])
	a.warm[i] = l
	if len(a.warm) > a.maxWarm {
		// Drop the smallest list.
		a.warm[0] = nil
		a.warm = a.warm[1:]
	}
}

// PutChain returns every list of a chain to the pool.
func (a *Arena) PutChain(head *Specklist) int {
	n := 0
	for l := head; l != nil; {
		next := l.Next()
		a.Put(l)
		n++
		l = next
	}
	return n
}

// Stats returns allocation and reuse counts plus the warm pool size.
func (a *Arena) Stats() (allocs, reuses, warm int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs, a.reuses, len(a.warm)
}

func clampAttrs(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxAttrs {
		return MaxAttrs
	}
	return n
}

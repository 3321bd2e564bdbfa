package store

import (
	"fmt"
	"sync"
	"sync/atomic"

	"specks/kernel"
)

// Config tunes a Store.
type Config struct {
	// InitialSlots is the starting slot count per dataset.
	InitialSlots int
	// SafetyMargin is the number of clock ticks a retired chain waits in
	// scrap before it may be reclaimed.
	SafetyMargin uint64
	// WarmLists bounds the arena's idle pool.
	WarmLists int
}

// DefaultConfig returns the configuration used when fields are zero.
func DefaultConfig() Config {
	return Config{InitialSlots: 8, SafetyMargin: 3, WarmLists: DefaultWarmLists}
}

type slot struct {
	head atomic.Pointer[Specklist]
	used atomic.Uint64
}

type scrapEntry struct {
	head    *Specklist
	retired uint64
	bytes   int64
}

// Store owns specklist chains per (dataset, timestep).
//
// The mutex guards only the slot tables, the scrap list and the pin counts;
// chains are published through atomic head pointers so readers never wait on
// a producer building a list.
type Store struct {
	cfg   Config
	clock *kernel.Clock
	arena *Arena

	mu        sync.Mutex
	datasets  [][]*slot
	scrap     []scrapEntry
	pins map[uint64]int
	// displayed holds the timestep on screen for each dataset.
	displayed map[int]int

	live      atomic.Int64
	scrapped  atomic.Int64
	reclaimed atomic.Uint64
}

// New creates a store. A nil clock gets a private one.
func New(cfg Config, clock *kernel.Clock, arena *Arena) *Store {
	def := DefaultConfig()
	if cfg.InitialSlots <= 0 {
		cfg.InitialSlots = def.InitialSlots
	}
	if cfg.SafetyMargin == 0 {
		cfg.SafetyMargin = def.SafetyMargin
	}
	if clock == nil {
		clock = kernel.NewClock()
	}
	if arena == nil {
		arena = NewArena(cfg.WarmLists)
	}
	return &Store{
		cfg:   cfg,
		clock: clock,
		arena: arena,
		pins:  make(map[uint64]int),

		displayed: make(map[int]int),
	}
}

// Arena returns the store's buffer pool.
func (s *Store) Arena() *Arena { return s.arena }

// Clock returns the store's use clock.
func (s *Store) Clock() *kernel.Clock { return s.clock }

// EnsureCapacity grows the slot table so (dataset, timestep) exists.
//
// Tables grow by doubling. Growth copies slot handles, never chains, so a
// handle or chain a reader already holds stays valid.
func (s *Store) EnsureCapacity(dataset, timestep int) error {
	if dataset < 0 || timestep < 0 {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, dataset, timestep)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(dataset, timestep)
	return nil
}

func (s *Store) ensureLocked(dataset, timestep int) *slot {
	for len(s.datasets) <= dataset {
		s.datasets = append(s.datasets, nil)
	}
	slots := s.datasets[dataset]
	if timestep >= len(slots) {
		n := len(slots)
		if n < s.cfg.InitialSlots {
			n = s.cfg.InitialSlots
		}
		for n <= timestep {
			n *= 2
		}
		grown := make([]*slot, n)
		copy(grown, slots)
		for i := len(slots); i < n; i++ {
			grown[i] = &slot{}
		}
		s.datasets[dataset] = grown
		slots = grown
	}
	return slots[timestep]
}

// Capacity returns the number of allocated slots for a dataset.
func (s *Store) Capacity(dataset int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dataset < 0 || dataset >= len(s.datasets) {
		return 0
	}
	return len(s.datasets[dataset])
}

// Timesteps returns the number of allocated timesteps with a chain installed
// at the highest index plus one.
func (s *Store) Timesteps(dataset int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dataset < 0 || dataset >= len(s.datasets) {
		return 0
	}
	slots := s.datasets[dataset]
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i].head.Load() != nil {
			return i + 1
		}
	}
	return 0
}

func (s *Store) lookup(dataset, timestep int) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dataset < 0 || dataset >= len(s.datasets) {
		return nil
	}
	slots := s.datasets[dataset]
	if timestep < 0 || timestep >= len(slots) {
		return nil
	}
	return slots[timestep]
}

// Chain returns the chain installed at (dataset, timestep), or nil.
func (s *Store) Chain(dataset, timestep int) *Specklist {
	sl := s.lookup(dataset, timestep)
	if sl == nil {
		return nil
	}
	return sl.head.Load()
}

// Insert prepends a fully built chain into a slot.
//
// The new chain's tail is linked to the previous head before the head pointer
// is swapped, so readers see either the old chain or the complete new one.
func (s *Store) Insert(dataset, timestep int, list *Specklist) error {
	if list == nil {
		return nil
	}
	if dataset < 0 || timestep < 0 {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, dataset, timestep)
	}
	b := chainBytes(list)
	tail := list.Tail()

	s.mu.Lock()
	sl := s.ensureLocked(dataset, timestep)
	if old := sl.head.Load(); old != nil && !tail.Link(old) {
		s.mu.Unlock()
		return fmt.Errorf("store: insert (%d, %d): chain tail already linked", dataset, timestep)
	}
	sl.head.Store(list)
	s.mu.Unlock()

	s.live.Add(b)
	sl.used.Store(s.clock.Now())
	return nil
}

// Append links list after the tail of the installed chain, or installs it
// when the slot is empty. Interior nodes are never replaced.
func (s *Store) Append(dataset, timestep int, list *Specklist) error {
	if list == nil {
		return nil
	}
	if dataset < 0 || timestep < 0 {
		return fmt.Errorf("%w: (%d, %d)", ErrOutOfRange, dataset, timestep)
	}
	b := chainBytes(list)

	s.mu.Lock()
	sl := s.ensureLocked(dataset, timestep)
	if head := sl.head.Load(); head == nil {
		sl.head.Store(list)
	} else if !head.Tail().Link(list) {
		s.mu.Unlock()
		return fmt.Errorf("store: append (%d, %d): tail changed", dataset, timestep)
	}
	s.mu.Unlock()

	s.live.Add(b)
	return nil
}

func (s *Store) detach(dataset, timestep int) (head *Specklist, shown bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dataset < 0 || dataset >= len(s.datasets) {
		return nil, false
	}
	slots := s.datasets[dataset]
	if timestep < 0 || timestep >= len(slots) {
		return nil, false
	}
	shown = s.shownLocked(dataset, timestep)
	return slots[timestep].head.Swap(nil), shown
}

// Discard retires the chain of a slot to scrap.
func (s *Store) Discard(dataset, timestep int) {
	head, _ := s.detach(dataset, timestep)
	s.retire(head)
}

// Clear removes a slot's chain. A chain that is not on display is returned to
// the arena at once; the displayed one is retired like Discard.
func (s *Store) Clear(dataset, timestep int) {
	head, shown := s.detach(dataset, timestep)
	if head == nil {
		return
	}
	if shown {
		s.retire(head)
		return
	}
	s.live.Add(-chainBytes(head))
	s.arena.PutChain(head)
}

func (s *Store) retire(head *Specklist) {
	if head == nil {
		return
	}
	b := chainBytes(head)
	s.live.Add(-b)
	s.scrapped.Add(b)
	s.mu.Lock()
	s.scrap = append(s.scrap, scrapEntry{head: head, retired: s.clock.Now(), bytes: b})
	s.mu.Unlock()
}

func (s *Store) shownLocked(dataset, timestep int) bool {
	t, ok := s.displayed[dataset]
	return ok && t == timestep
}

// MarkDisplayed records the slot a dataset has on screen and stamps its last
// use. Each dataset keeps one displayed slot; marking another timestep of the
// same dataset moves it.
func (s *Store) MarkDisplayed(dataset, timestep int) {
	now := s.clock.Now()
	s.mu.Lock()
	s.displayed[dataset] = timestep
	s.mu.Unlock()
	if sl := s.lookup(dataset, timestep); sl != nil {
		sl.used.Store(now)
		for l := sl.head.Load(); l != nil; l = l.Next() {
			l.Touch(now)
		}
	}
}

// Purge retires the least recently used slot that no dataset has on display.
// It returns false when nothing could be purged.
func (s *Store) Purge() bool {
	s.mu.Lock()
	var victim *slot
	best := ^uint64(0)
	for d, slots := range s.datasets {
		for t, sl := range slots {
			if sl.head.Load() == nil {
				continue
			}
			if s.shownLocked(d, t) {
				continue
			}
			if u := sl.used.Load(); u < best {
				best, victim = u, sl
			}
		}
	}
	var head *Specklist
	if victim != nil {
		head = victim.head.Swap(nil)
	}
	s.mu.Unlock()
	if head == nil {
		return false
	}
	s.retire(head)
	return true
}

// PurgeTo purges slots until live bytes fall to limit. It returns the number
// of slots purged.
func (s *Store) PurgeTo(limit int64) int {
	if limit <= 0 {
		return 0
	}
	n := 0
	for s.live.Load() > limit {
		if !s.Purge() {
			break
		}
		n++
	}
	return n
}

// LiveBytes returns the bytes held by installed chains.
func (s *Store) LiveBytes() int64 { return s.live.Load() }

// ScrapBytes returns the bytes held by retired chains awaiting reclamation.
func (s *Store) ScrapBytes() int64 { return s.scrapped.Load() }

func chainBytes(head *Specklist) int64 {
	var n int64
	for l := head; l != nil; l = l.Next() {
		n += l.Bytes()
	}
	return n
}

package store

// Guard holds back reclamation of chains retired at or after its epoch.
// Readers that keep a chain across clock ticks pin before loading it.
type Guard struct {
	s     *Store
	epoch uint64
}

// Pin registers a reader at the current tick.
func (s *Store) Pin() Guard {
	e := s.clock.Now()
	s.mu.Lock()
	s.pins[e]++
	s.mu.Unlock()
	return Guard{s: s, epoch: e}
}

// Epoch returns the tick the guard was pinned at.
func (g Guard) Epoch() uint64 { return g.epoch }

// Release drops the pin. Releasing a zero Guard is a no-op.
func (g Guard) Release() {
	if g.s == nil {
		return
	}
	g.s.mu.Lock()
	defer g.s.mu.Unlock()
	if g.s.pins[g.epoch] <= 1 {
		delete(g.s.pins, g.epoch)
		return
	}
	g.s.pins[g.epoch]--
}

// Advance moves the store's clock forward one tick.
func (s *Store) Advance() uint64 {
	return s.clock.Advance()
}

// Reclaim returns eligible scrap to the arena and reports how many chains
// were freed.
//
// A chain retired at tick r is eligible once the clock is SafetyMargin ticks
// past r and no guard pinned at or before r is still held: such a reader may
// have loaded the chain while it was installed.
func (s *Store) Reclaim() int {
	now := s.clock.Now()
	s.mu.Lock()
	oldestPin := ^uint64(0)
	for e := range s.pins {
		if e < oldestPin {
			oldestPin = e
		}
	}
	var free []scrapEntry
	keep := s.scrap[:0]
	for _, e := range s.scrap {
		if now-e.retired >= s.cfg.SafetyMargin && e.retired < oldestPin {
			free = append(free, e)
			continue
		}
		keep = append(keep, e)
	}
	clear(s.scrap[len(keep):])
	s.scrap = keep
	s.mu.Unlock()

	for _, e := range free {
		s.scrapped.Add(-e.bytes)
		s.arena.PutChain(e.head)
	}
	s.reclaimed.Add(uint64(len(free)))
	return len(free)
}

// ScrapLen returns the number of chains waiting in scrap.
func (s *Store) ScrapLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scrap)
}

// Reclaimed returns the total number of chains reclaimed so far.
func (s *Store) Reclaimed() uint64 { return s.reclaimed.Load() }

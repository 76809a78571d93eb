package worker

import (
	"context"
	"sync"
)

// sequencer hands out per-engine turns in Seq order so that log lines for one
// engine are appended in cycle order even when several workers score that
// engine's records concurrently. Every wait that succeeds must be paired with
// exactly one release.
type sequencer struct {
	mu      sync.Mutex
	next    map[int]int
	changed chan struct{}
}

func newSequencer() *sequencer {
	return &sequencer{next: make(map[int]int), changed: make(chan struct{})}
}

// wait blocks until seq is unit's next turn.
func (s *sequencer) wait(ctx context.Context, unit, seq int) error {
	for {
		s.mu.Lock()
		if s.next[unit] == seq {
			s.mu.Unlock()
			return nil
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// release passes unit's turn to the next record.
func (s *sequencer) release(unit int) {
	s.mu.Lock()
	s.next[unit]++
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

package health

import "sync"

// Tracker rewrites ΔRUL to compare each engine with the RUL it had at the
// previous poll. An engine seen for the first time gets ΔRUL 0.
//
// All methods are safe for concurrent use.
type Tracker struct {
	mu   sync.Mutex
	last map[int]float64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[int]float64)}
}

// Apply sets f's deltas against the previous poll and remembers f's values.
func (t *Tracker) Apply(f *Fleet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range f.Engines {
		e := &f.Engines[i]
		if prev, ok := t.last[e.Unit]; ok {
			e.Delta = e.RUL - prev
		} else {
			e.Delta = 0
		}
		t.last[e.Unit] = e.RUL
	}
}

// Reset forgets all previous values, e.g. when the log was truncated by a
// new pipeline run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.last = make(map[int]float64)
	t.mu.Unlock()
}

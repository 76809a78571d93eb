package store

import (
	"sync"
	"time"

	"github.com/rulstream/rulstream/monitor/internal/health"
	"github.com/rulstream/rulstream/monitor/internal/scraper"
)

// Snapshot is the outcome of one poll.
type Snapshot struct {
	// Fleet is nil when NoData is set.
	Fleet *health.Fleet `json:"fleet,omitempty"`
	// NoData means the prediction log does not exist yet.
	NoData bool `json:"no_data"`
	// Pipeline is nil when scraping is disabled or failed.
	Pipeline  *scraper.PipelineStats `json:"pipeline,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Store holds the most recent Snapshot. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
	now  func() time.Time // injectable for deterministic tests
}

// New returns an empty Store.
func New() *Store {
	return &Store{now: time.Now}
}

// Put replaces the current snapshot and stamps it with the store clock.
// Callers must not modify snap afterwards.
func (s *Store) Put(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.UpdatedAt = s.now()
	s.snap = snap
}

// Latest returns the current snapshot, or false before the first poll.
func (s *Store) Latest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.snap != nil
}

// Engine returns the latest row for unit.
func (s *Store) Engine(unit int) (health.EngineHealth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil || s.snap.Fleet == nil {
		return health.EngineHealth{}, false
	}
	return s.snap.Fleet.Engine(unit)
}

// Age returns how long ago the snapshot was stored.
func (s *Store) Age() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return 0
	}
	return s.now().Sub(s.snap.UpdatedAt)
}

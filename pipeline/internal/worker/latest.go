package worker

import (
	"sort"
	"sync"

	"github.com/rulstream/rulstream/pkg/types"
)

// Latest holds the most recent prediction per engine. It is the only state
// workers share besides the queue and the log.
type Latest struct {
	mu   sync.RWMutex
	byID map[int]types.PredictionRecord
}

// NewLatest returns an empty Latest.
func NewLatest() *Latest {
	return &Latest{byID: make(map[int]types.PredictionRecord)}
}

// Set records rec as its engine's latest prediction.
func (l *Latest) Set(rec types.PredictionRecord) {
	l.mu.Lock()
	l.byID[rec.Unit] = rec
	l.mu.Unlock()
}

// Get returns the latest prediction for unit.
func (l *Latest) Get(unit int) (types.PredictionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.byID[unit]
	return rec, ok
}

// Snapshot returns a copy of every engine's latest prediction, ascending by unit.
func (l *Latest) Snapshot() []types.PredictionRecord {
	l.mu.RLock()
	out := make([]types.PredictionRecord, 0, len(l.byID))
	for _, rec := range l.byID {
		out = append(out, rec)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}

// Len is the number of engines with a prediction.
func (l *Latest) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

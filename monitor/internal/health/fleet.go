package health

import (
	"io"
	"sort"
	"time"

	"github.com/rulstream/rulstream/pkg/types"
)

// EngineHealth is one row of the fleet table.
type EngineHealth struct {
	Unit int `json:"engine_id"`
	// Cycle is 0 when the log was written without cycles.
	Cycle   int     `json:"cycle"`
	RUL     float64 `json:"rul"`
	Delta   float64 `json:"delta_rul"`
	Status  Status  `json:"status"`
	Records int     `json:"records"`
}

// Summary counts engines per Status.
type Summary struct {
	Healthy int `json:"healthy"`
	Minor   int `json:"minor"`
	Major   int `json:"major"`
	Broken  int `json:"broken"`
}

func (s *Summary) add(st Status) {
	switch st {
	case StatusHealthy:
		s.Healthy++
	case StatusMinor:
		s.Minor++
	case StatusMajor:
		s.Major++
	case StatusBroken:
		s.Broken++
	}
}

// Fleet is the result of one rescan. Engines are ascending by Unit.
type Fleet struct {
	Engines   []EngineHealth  `json:"engines"`
	Summary   Summary         `json:"summary"`
	Scan      types.ScanStats `json:"scan"`
	ScannedAt time.Time       `json:"scanned_at"`
	// Head is the first record in the log, nil when it holds none. A changed
	// head means the log was rewritten by a new run.
	Head *types.PredictionRecord `json:"-"`
}

// Engine returns the row for unit.
func (f *Fleet) Engine(unit int) (EngineHealth, bool) {
	i := sort.Search(len(f.Engines), func(i int) bool { return f.Engines[i].Unit >= unit })
	if i < len(f.Engines) && f.Engines[i].Unit == unit {
		return f.Engines[i], true
	}
	return EngineHealth{}, false
}

type engineState struct {
	cycle   int
	rul     float64
	prev    float64
	hasPrev bool
	records int
}

type accumulator struct {
	engines map[int]*engineState
	head    *types.PredictionRecord
}

func newAccumulator() *accumulator {
	return &accumulator{engines: make(map[int]*engineState)}
}

func (a *accumulator) add(rec types.PredictionRecord) error {
	if a.head == nil {
		head := rec
		a.head = &head
	}
	st, ok := a.engines[rec.Unit]
	if !ok {
		st = &engineState{}
		a.engines[rec.Unit] = st
	} else {
		st.prev, st.hasPrev = st.rul, true
	}
	st.cycle, st.rul = rec.Cycle, rec.RUL
	st.records++
	return nil
}

// Rescan reads every record in r and builds the fleet table.
// Later lines for an engine replace earlier ones.
func Rescan(r io.Reader, th Thresholds, now time.Time) (*Fleet, error) {
	acc := newAccumulator()
	stats, err := types.ScanLog(r, acc.add)
	if err != nil {
		return nil, err
	}
	return build(acc, th, stats, now), nil
}

// RescanFile is Rescan over the file at path. A missing file yields
// types.ErrNoLog.
func RescanFile(path string, th Thresholds, now time.Time) (*Fleet, error) {
	acc := newAccumulator()
	stats, err := types.ReadLogFile(path, acc.add)
	if err != nil {
		return nil, err
	}
	return build(acc, th, stats, now), nil
}

func build(acc *accumulator, th Thresholds, stats types.ScanStats, now time.Time) *Fleet {
	f := &Fleet{Engines: make([]EngineHealth, 0, len(acc.engines)), Scan: stats, ScannedAt: now, Head: acc.head}
	for unit, st := range acc.engines {
		eh := EngineHealth{
			Unit:    unit,
			Cycle:   st.cycle,
			RUL:     st.rul,
			Status:  th.Classify(st.rul),
			Records: st.records,
		}
		if st.hasPrev {
			eh.Delta = st.rul - st.prev
		}
		f.Engines = append(f.Engines, eh)
		f.Summary.add(eh.Status)
	}
	sort.Slice(f.Engines, func(i, j int) bool { return f.Engines[i].Unit < f.Engines[j].Unit })
	return f
}

// Reclassify recomputes statuses and the summary with th, e.g. after a
// threshold reload.
func (f *Fleet) Reclassify(th Thresholds) {
	f.Summary = Summary{}
	for i := range f.Engines {
		f.Engines[i].Status = th.Classify(f.Engines[i].RUL)
		f.Summary.add(f.Engines[i].Status)
	}
}

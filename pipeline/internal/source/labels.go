package source

import "math"

// TrainingLabels returns one label per row of t:
// min(max_cycle(unit) - cycle, ceiling).
func TrainingLabels(t *Table, ceiling float64) []float64 {
	maxCycle := make(map[int]int)
	for _, r := range t.Rows {
		if r.Cycle > maxCycle[r.Unit] {
			maxCycle[r.Unit] = r.Cycle
		}
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = Cap(float64(maxCycle[r.Unit]-r.Cycle), ceiling)
	}
	return out
}

// Cap clamps a remaining-cycles value at ceiling.
func Cap(remaining, ceiling float64) float64 {
	return math.Min(remaining, ceiling)
}

// TestLabels maps each test engine to its ground-truth RUL at its last
// recorded cycle. labels are aligned with the engines in ascending ID order.
func TestLabels(t *Table, labels []float64) (map[int]float64, error) {
	units := t.Units()
	if len(units) != len(labels) {
		return nil, formatErr("labels", 0, "%d labels for %d test engines", len(labels), len(units))
	}
	out := make(map[int]float64, len(units))
	for i, u := range units {
		out[u] = labels[i]
	}
	return out, nil
}

// LastCycles returns each engine's final recorded cycle.
func LastCycles(t *Table) map[int]int {
	out := make(map[int]int)
	for _, r := range t.Rows {
		if r.Cycle > out[r.Unit] {
			out[r.Unit] = r.Cycle
		}
	}
	return out
}

// Package features derives smoothed model inputs from raw telemetry.
package features

import (
	"fmt"
	"sort"

	"github.com/rulstream/rulstream/pipeline/internal/source"
)

// RollingName is the derived column name for name smoothed over window.
func RollingName(name string, window int) string {
	return fmt.Sprintf("%s_roll%d", name, window)
}

// SensorColumns returns the raw sensor columns of t in column order.
func SensorColumns(t *source.Table) []string {
	var out []string
	for _, c := range t.Columns {
		if source.IsSensor(c) {
			out = append(out, c)
		}
	}
	return out
}

// AddRolling returns a copy of t sorted by (unit, cycle) with one extra
// column per name holding its moving average over the last window
// observations of the same engine. The first observations of an engine
// average over what is available, so an engine's first value equals itself.
// t is not modified.
func AddRolling(t *source.Table, names []string, window int) (*source.Table, error) {
	if window < 1 {
		return nil, fmt.Errorf("features: window %d must be at least 1", window)
	}
	idx := make([]int, len(names))
	for i, n := range names {
		j := t.Index(n)
		if j < 0 {
			return nil, fmt.Errorf("features: unknown column %q", n)
		}
		idx[i] = j
	}

	out := t.Clone()
	sort.SliceStable(out.Rows, func(a, b int) bool {
		ra, rb := out.Rows[a], out.Rows[b]
		if ra.Unit != rb.Unit {
			return ra.Unit < rb.Unit
		}
		return ra.Cycle < rb.Cycle
	})
	for _, n := range names {
		out.Columns = append(out.Columns, RollingName(n, window))
	}

	// One running window per feature; reset at every engine boundary.
	sums := make([]float64, len(names))
	start := 0
	for i := range out.Rows {
		if i == 0 || out.Rows[i].Unit != out.Rows[i-1].Unit {
			start = i
			for k := range sums {
				sums[k] = 0
			}
		}
		row := &out.Rows[i]
		n := i - start + 1
		derived := make([]float64, len(names))
		for k, j := range idx {
			sums[k] += row.Values[j]
			if n > window {
				sums[k] -= out.Rows[i-window].Values[j]
			}
			count := n
			if count > window {
				count = window
			}
			derived[k] = sums[k] / float64(count)
		}
		row.Values = append(row.Values, derived...)
	}
	return out, nil
}

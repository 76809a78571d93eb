package source

import (
	"sort"

	"github.com/rulstream/rulstream/pkg/types"
)

// Row is one engine cycle. Values align with Table.Columns.
type Row struct {
	Unit   int
	Cycle  int
	Values []float64
}

// Table is a parsed telemetry file.
type Table struct {
	Columns []string
	Rows    []Row
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Units returns the distinct engine IDs in ascending order.
func (t *Table) Units() []int {
	seen := make(map[int]struct{})
	var out []int
	for _, r := range t.Rows {
		if _, ok := seen[r.Unit]; !ok {
			seen[r.Unit] = struct{}{}
			out = append(out, r.Unit)
		}
	}
	sort.Ints(out)
	return out
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = Row{Unit: r.Unit, Cycle: r.Cycle, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// EngineStream is one engine's records in source order.
type EngineStream struct {
	Unit    int
	Records []types.SensorRecord
}

// Records groups t by engine and projects each row onto features, in the
// given order. Engines are returned in ascending ID order; each engine's
// records keep their order in t.
func Records(t *Table, features []string) ([]EngineStream, error) {
	idx := make([]int, len(features))
	for i, name := range features {
		j := t.Index(name)
		if j < 0 {
			return nil, formatErr("table", 0, "feature column %q not present", name)
		}
		idx[i] = j
	}

	byUnit := make(map[int]*EngineStream)
	var order []int
	for _, r := range t.Rows {
		es, ok := byUnit[r.Unit]
		if !ok {
			es = &EngineStream{Unit: r.Unit}
			byUnit[r.Unit] = es
			order = append(order, r.Unit)
		}
		fs := make([]types.Feature, len(features))
		for i, j := range idx {
			fs[i] = types.Feature{Name: features[i], Value: r.Values[j]}
		}
		es.Records = append(es.Records, types.SensorRecord{Unit: r.Unit, Cycle: r.Cycle, Features: fs})
	}

	sort.Ints(order)
	out := make([]EngineStream, 0, len(order))
	for _, u := range order {
		out = append(out, *byUnit[u])
	}
	return out, nil
}

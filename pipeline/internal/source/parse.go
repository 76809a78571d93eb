package source

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Delimiter selects how columns are separated.
type Delimiter int

const (
	// Whitespace splits on runs of spaces and tabs; trailing blanks vanish.
	Whitespace Delimiter = iota
	// Comma splits on ','.
	Comma
)

// ParseTable parses a train or test file. name is used in error messages.
func ParseTable(r io.Reader, name string, delim Delimiter) (*Table, error) {
	t := &Table{Columns: ValueColumns()}
	lastCycle := make(map[int]int)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := split(line, delim)
		switch len(fields) {
		case schemaWidth:
		case schemaWidth + trailingColumns:
			fields = fields[:schemaWidth]
		default:
			return nil, formatErr(name, lineNo, "got %d columns, want %d (or %d with trailing columns)",
				len(fields), schemaWidth, schemaWidth+trailingColumns)
		}

		unit, err := parsePositiveInt(fields[0])
		if err != nil {
			return nil, formatErr(name, lineNo, "%s: %v", ColUnit, err)
		}
		cycle, err := parsePositiveInt(fields[1])
		if err != nil {
			return nil, formatErr(name, lineNo, "%s: %v", ColCycle, err)
		}
		if prev, ok := lastCycle[unit]; ok && cycle <= prev {
			return nil, formatErr(name, lineNo, "engine %d: cycle %d does not follow cycle %d", unit, cycle, prev)
		}
		lastCycle[unit] = cycle

		values := make([]float64, len(fields)-2)
		for i, f := range fields[2:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil || !finite(v) {
				return nil, formatErr(name, lineNo, "%s: %q is not numeric", t.Columns[i], f)
			}
			values[i] = v
		}
		t.Rows = append(t.Rows, Row{Unit: unit, Cycle: cycle, Values: values})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source: read %s: %w", name, err)
	}
	if len(t.Rows) == 0 {
		return nil, formatErr(name, 0, "no rows")
	}
	return t, nil
}

// ParseLabels parses the single-column ground-truth RUL file.
func ParseLabels(r io.Reader, name string) ([]float64, error) {
	var out []float64
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(strings.ReplaceAll(sc.Text(), ",", " "))
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 1 {
			return nil, formatErr(name, lineNo, "got %d columns, want 1", len(fields))
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || !finite(v) {
			return nil, formatErr(name, lineNo, "%q is not numeric", fields[0])
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source: read %s: %w", name, err)
	}
	if len(out) == 0 {
		return nil, formatErr(name, 0, "no labels")
	}
	return out, nil
}

// Paths names the three historical inputs. Train and RUL are optional.
type Paths struct {
	Train string
	Test  string
	RUL   string
}

// Dataset is the loaded historical data.
type Dataset struct {
	Train  *Table // nil when no train path was given
	Test   *Table
	Labels []float64 // nil when no RUL path was given
}

// Load parses every configured file. Label count is checked against the
// number of distinct test engines.
func Load(p Paths, delim Delimiter) (*Dataset, error) {
	ds := &Dataset{}
	var err error
	if p.Train != "" {
		if ds.Train, err = parseTableFile(p.Train, delim); err != nil {
			return nil, err
		}
	}
	if ds.Test, err = parseTableFile(p.Test, delim); err != nil {
		return nil, err
	}
	if p.RUL != "" {
		f, err := os.Open(p.RUL)
		if err != nil {
			return nil, fmt.Errorf("source: open %s: %w", p.RUL, err)
		}
		defer f.Close()
		if ds.Labels, err = ParseLabels(f, p.RUL); err != nil {
			return nil, err
		}
		if n := len(ds.Test.Units()); n != len(ds.Labels) {
			return nil, formatErr(p.RUL, 0, "%d labels for %d test engines", len(ds.Labels), n)
		}
	}
	return ds, nil
}

func parseTableFile(path string, delim Delimiter) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", path, err)
	}
	defer f.Close()
	return ParseTable(f, path, delim)
}

func split(line string, delim Delimiter) []string {
	if delim == Comma {
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		// Trailing separators leave empty columns, the comma form of the
		// trailing whitespace in the raw files.
		for len(parts) > schemaWidth && parts[len(parts)-1] == "" {
			parts = parts[:len(parts)-1]
		}
		return parts
	}
	return strings.Fields(line)
}

// finite rejects the nan and inf spellings ParseFloat accepts.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parsePositiveInt(s string) (int, error) {
	// Files written by dataframe tools sometimes carry "1.0" for integers.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	if f < 1 {
		return 0, fmt.Errorf("%q is not positive", s)
	}
	return int(f), nil
}

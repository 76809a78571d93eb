package types

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoLog is returned by ReadLogFile when the log does not exist yet.
var ErrNoLog = errors.New("prediction log does not exist")

// maxLineSize bounds a single log line; records are far smaller.
const maxLineSize = 64 * 1024

// ScanStats summarises one pass over the log.
type ScanStats struct {
	Lines     int // non-blank lines seen
	Records   int // lines decoded into records
	Malformed int // lines skipped because they could not be decoded
}

// EncodeLine serialises rec as a single JSON line terminated by '\n'.
func EncodeLine(rec PredictionRecord) ([]byte, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("types: encode prediction: %w", err)
	}
	return append(b, '\n'), nil
}

// wireRecord mirrors PredictionRecord with rul as a pointer so a line that
// omits it can be told apart from a zero prediction.
type wireRecord struct {
	Unit  int      `json:"unit"`
	Cycle int      `json:"cycle"`
	RUL   *float64 `json:"rul"`
}

// DecodeLine parses one log line. Records without a positive unit or without
// a rul are rejected.
func DecodeLine(line []byte) (PredictionRecord, error) {
	var w wireRecord
	if err := json.Unmarshal(line, &w); err != nil {
		return PredictionRecord{}, fmt.Errorf("types: decode prediction: %w", err)
	}
	rec := PredictionRecord{Unit: w.Unit, Cycle: w.Cycle}
	if w.Unit < 1 {
		return rec, fmt.Errorf("types: decode prediction: unit %d is not positive", w.Unit)
	}
	if w.RUL == nil {
		return rec, fmt.Errorf("types: decode prediction: unit %d: rul missing", w.Unit)
	}
	rec.RUL = *w.RUL
	return rec, nil
}

// ScanLog calls fn for every decodable record in r, in file order.
// Blank and malformed lines are skipped and counted. A non-nil error from fn
// stops the scan and is returned.
func ScanLog(r io.Reader, fn func(PredictionRecord) error) (ScanStats, error) {
	var st ScanStats
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		st.Lines++
		rec, err := DecodeLine(line)
		if err != nil {
			st.Malformed++
			continue
		}
		st.Records++
		if err := fn(rec); err != nil {
			return st, err
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("types: scan log: %w", err)
	}
	return st, nil
}

// ReadLogFile opens path and scans it from the start.
// It returns ErrNoLog if the file does not exist.
func ReadLogFile(path string, fn func(PredictionRecord) error) (ScanStats, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ScanStats{}, ErrNoLog
		}
		return ScanStats{}, fmt.Errorf("types: open log: %w", err)
	}
	defer f.Close()
	return ScanLog(f, fn)
}

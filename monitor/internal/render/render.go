// Package render draws the operator console table.
package render

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/rulstream/rulstream/monitor/internal/store"
)

const clearScreen = "\033[H\033[2J"

// Options controls console output.
type Options struct {
	// ClearScreen redraws in place instead of appending.
	ClearScreen bool
	// LogPath is shown in the no-data line.
	LogPath string
}

// Snapshot writes snap as a table, one row per engine in ascending order,
// followed by a status summary and, when available, pipeline counters.
func Snapshot(w io.Writer, snap *store.Snapshot, opts Options) error {
	bw := bufio.NewWriter(w)
	if opts.ClearScreen {
		bw.WriteString(clearScreen)
	}

	if snap.NoData || snap.Fleet == nil {
		fmt.Fprintf(bw, "[monitor] no predictions yet (waiting for %s)\n", opts.LogPath)
		return bw.Flush()
	}

	f := snap.Fleet
	fmt.Fprintf(bw, "%6s │ %5s │ %7s │ %6s │ Status\n", "Engine", "Cycle", "RUL", "ΔRUL")
	fmt.Fprintln(bw, "───────┼───────┼─────────┼────────┼────────")
	for _, e := range f.Engines {
		cycle := "-"
		if e.Cycle > 0 {
			cycle = fmt.Sprint(e.Cycle)
		}
		fmt.Fprintf(bw, "%6d │ %5s │ %7.2f │ %6.2f │ %s\n", e.Unit, cycle, e.RUL, e.Delta, e.Status)
	}

	s := f.Summary
	fmt.Fprintf(bw, "\n%d engines: %d healthy, %d minor, %d major, %d broken",
		len(f.Engines), s.Healthy, s.Minor, s.Major, s.Broken)
	if f.Scan.Malformed > 0 {
		fmt.Fprintf(bw, " (%d unreadable lines skipped)", f.Scan.Malformed)
	}
	fmt.Fprintf(bw, "  [%s]\n", f.ScannedAt.Format(time.TimeOnly))

	if p := snap.Pipeline; p != nil {
		fmt.Fprintf(bw, "pipeline: %.0f enqueued, %.0f predicted, %.0f skipped, queue %.0f, %.0f workers active, %.2f ms/prediction\n",
			p.RecordsEnqueued, p.Predictions, p.Skipped, p.QueueDepth, p.ActiveWorkers, p.MeanPredictionMS)
	}
	return bw.Flush()
}

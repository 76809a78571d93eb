// Package predlog appends prediction records to the newline-delimited JSON
// log the monitor reads.
//
// Each Append is one write(2) of one complete line on an O_APPEND file, so
// concurrent readers never observe interleaved lines from different workers.
package predlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rulstream/rulstream/pipeline/internal/metrics"
	"github.com/rulstream/rulstream/pipeline/internal/retry"
	"github.com/rulstream/rulstream/pkg/types"
)

// Options controls how the log is opened and written.
type Options struct {
	// Truncate clears any previous run's log.
	Truncate bool
	// OmitCycle writes {unit, rul} lines without the cycle field.
	OmitCycle bool
	Retry     retry.Policy
}

// Writer is safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
	opts Options
}

// Open opens (creating if needed) the log at path for appending.
func Open(path string, opts Options) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("predlog: create dir: %w", err)
		}
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if opts.Truncate {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("predlog: open %s: %w", path, err)
	}
	return &Writer{f: f, path: path, opts: opts}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string { return w.path }

// Append writes rec as one line. Writes that made no progress are retried;
// a partial write is not, since retrying it would duplicate bytes.
func (w *Writer) Append(ctx context.Context, rec types.PredictionRecord) error {
	if w.opts.OmitCycle {
		rec.Cycle = 0
	}
	line, err := types.EncodeLine(rec)
	if err != nil {
		return fmt.Errorf("predlog: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	err = retry.Do(ctx, w.opts.Retry, func() error {
		n, err := w.f.Write(line)
		switch {
		case err == nil:
			return nil
		case n == 0:
			return err
		default:
			return retry.Permanent(fmt.Errorf("%w: wrote %d of %d bytes: %v", io.ErrShortWrite, n, len(line), err))
		}
	}, func(int, error, time.Duration) {
		metrics.LogAppendRetriesTotal.Inc()
	})
	if err != nil {
		return fmt.Errorf("predlog: append unit %d: %w", rec.Unit, err)
	}
	return nil
}

// ErrClosed is returned by Append after Close.
var ErrClosed = os.ErrClosed

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("predlog: close: %w", err)
	}
	return nil
}

// Package dispatch feeds per-engine record streams onto the work queue and
// finishes with one shutdown sentinel per consumer.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/rulstream/rulstream/pipeline/internal/metrics"
	"github.com/rulstream/rulstream/pipeline/internal/source"
	"github.com/rulstream/rulstream/pipeline/internal/work"
)

// Sink is the producing side of the work queue.
type Sink interface {
	Put(ctx context.Context, item work.Item) error
	Len() int
}

// Options controls a dispatch run.
type Options struct {
	// Consumers is the number of workers; that many sentinels are sent.
	Consumers int
	// Interleave draws the next engine uniformly at random among those with
	// records left. Otherwise engines are drained one after another.
	Interleave bool
	// Seed fixes the interleaving; 0 seeds from the clock.
	Seed int64
	// Delay is slept after every enqueued record.
	Delay time.Duration
	RunID string
}

// Stats summarises a finished dispatch.
type Stats struct {
	Engines   int
	Records   int
	Sentinels int
}

// Dispatch enqueues every record of streams, preserving each engine's cycle
// order, then enqueues opts.Consumers Shutdown items. It returns early only
// when ctx is cancelled or the sink rejects an item.
func Dispatch(ctx context.Context, sink Sink, streams []source.EngineStream, opts Options) (Stats, error) {
	if opts.Consumers < 1 {
		return Stats{}, fmt.Errorf("dispatch: consumers must be >= 1, got %d", opts.Consumers)
	}
	log := slog.With("run_id", opts.RunID)

	var stats Stats
	next := make([]int, len(streams))
	active := make([]int, 0, len(streams))
	for i, s := range streams {
		if len(s.Records) > 0 {
			active = append(active, i)
		}
	}
	stats.Engines = len(active)

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // not crypto

	log.Info("dispatch: starting",
		"engines", stats.Engines, "consumers", opts.Consumers, "interleave", opts.Interleave, "seed", seed)

	for len(active) > 0 {
		pick := 0
		if opts.Interleave {
			pick = rng.Intn(len(active))
		}
		si := active[pick]
		stream := streams[si]
		seq := next[si]
		rec := stream.Records[seq]

		if err := sink.Put(ctx, work.Record{SensorRecord: rec, Seq: seq}); err != nil {
			return stats, fmt.Errorf("dispatch: enqueue unit %d cycle %d: %w", rec.Unit, rec.Cycle, err)
		}
		stats.Records++
		metrics.RecordsEnqueuedTotal.Inc()
		metrics.QueueDepth.Set(float64(sink.Len()))
		log.Debug("dispatch: enqueued", "unit", rec.Unit, "cycle", rec.Cycle)

		next[si]++
		if next[si] == len(stream.Records) {
			if opts.Interleave {
				active[pick] = active[len(active)-1]
				active = active[:len(active)-1]
			} else {
				active = active[1:]
			}
		}

		if opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return stats, fmt.Errorf("dispatch: %w", ctx.Err())
			case <-time.After(opts.Delay):
			}
		}
	}

	for i := 0; i < opts.Consumers; i++ {
		if err := sink.Put(ctx, work.Shutdown{}); err != nil {
			return stats, fmt.Errorf("dispatch: enqueue sentinel %d/%d: %w", i+1, opts.Consumers, err)
		}
		stats.Sentinels++
		metrics.SentinelsEnqueuedTotal.Inc()
	}

	log.Info("dispatch: done", "records", stats.Records, "sentinels", stats.Sentinels)
	return stats, nil
}

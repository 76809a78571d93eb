// Package worker runs the inference worker pool: each worker takes items off
// the queue, scores records, appends predictions to the log and updates the
// shared latest-prediction map, until it receives a Shutdown sentinel.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/rulstream/rulstream/pipeline/internal/metrics"
	"github.com/rulstream/rulstream/pipeline/internal/model"
	"github.com/rulstream/rulstream/pipeline/internal/work"
	"github.com/rulstream/rulstream/pkg/types"
)

// ErrNonFinite marks a prediction that came back NaN or infinite.
var ErrNonFinite = errors.New("worker: non-finite prediction")

// Shape error policies.
const (
	OnShapeErrorSkip = "skip"
	OnShapeErrorFail = "fail"
)

// Scorer predicts RUL from a feature vector. *model.Predictor implements it.
type Scorer interface {
	Predict(features []types.Feature) (float64, error)
}

// LoadFunc loads a fresh Scorer; it is called once per worker.
type LoadFunc func(ctx context.Context) (Scorer, error)

// Source is the consuming side of the work queue.
type Source interface {
	Process(ctx context.Context, fn func(work.Item) error) error
	Len() int
}

// Appender persists one prediction.
type Appender interface {
	Append(ctx context.Context, rec types.PredictionRecord) error
}

// Options configures a Pool.
type Options struct {
	Count        int
	Delay        time.Duration
	OnShapeError string
	RunID        string
}

// Pool is a fixed set of workers sharing one queue, log and Latest map.
type Pool struct {
	workers []*worker
	wg      sync.WaitGroup
	done    chan struct{}

	mu   sync.Mutex
	errs []error
}

type worker struct {
	id     string
	scorer Scorer
	src    Source
	out    Appender
	latest *Latest
	seq    *sequencer
	opts   Options
	log    *slog.Logger
}

// NewPool loads one Scorer per worker. All loading happens here, before any
// worker touches the queue, so a missing artifact fails the run up front.
func NewPool(ctx context.Context, src Source, out Appender, latest *Latest, load LoadFunc, opts Options) (*Pool, error) {
	if opts.Count < 1 {
		return nil, fmt.Errorf("worker: count must be >= 1, got %d", opts.Count)
	}
	switch opts.OnShapeError {
	case "":
		opts.OnShapeError = OnShapeErrorSkip
	case OnShapeErrorSkip, OnShapeErrorFail:
	default:
		return nil, fmt.Errorf("worker: on_shape_error %q: want skip|fail", opts.OnShapeError)
	}

	seq := newSequencer()
	p := &Pool{done: make(chan struct{})}
	for i := 0; i < opts.Count; i++ {
		s, err := load(ctx)
		if err != nil {
			return nil, fmt.Errorf("worker: load scorer for worker %d: %w", i, err)
		}
		id := strconv.Itoa(i)
		p.workers = append(p.workers, &worker{
			id:     id,
			scorer: s,
			src:    src,
			out:    out,
			latest: latest,
			seq:    seq,
			opts:   opts,
			log:    slog.With("worker", id, "run_id", opts.RunID),
		})
	}
	return p, nil
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	p.wg.Add(len(p.workers))
	for _, w := range p.workers {
		go func(w *worker) {
			defer p.wg.Done()
			if err := w.run(ctx); err != nil {
				w.log.Error("worker: stopped", "err", err)
				p.mu.Lock()
				p.errs = append(p.errs, err)
				p.mu.Unlock()
			}
		}(w)
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
}

// Done is closed once every worker has exited.
func (p *Pool) Done() <-chan struct{} { return p.done }

// Wait blocks until every worker has exited and returns their errors joined.
func (p *Pool) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func (w *worker) run(ctx context.Context) error {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()
	w.log.Debug("worker: started")

	for {
		stop, scored := false, false
		err := w.src.Process(ctx, func(it work.Item) error {
			metrics.QueueDepth.Set(float64(w.src.Len()))
			switch v := it.(type) {
			case work.Shutdown:
				stop = true
				return nil
			case work.Record:
				scored = true
				return w.handle(ctx, v)
			default:
				return fmt.Errorf("worker %s: unexpected item %T", w.id, it)
			}
		})
		if err != nil {
			return err
		}
		if stop {
			w.log.Debug("worker: received shutdown")
			return nil
		}
		if scored && w.opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.opts.Delay):
			}
		}
	}
}

func (w *worker) handle(ctx context.Context, rec work.Record) error {
	start := time.Now()
	rul, predictErr := w.scorer.Predict(rec.Features)
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	if predictErr == nil && (math.IsNaN(rul) || math.IsInf(rul, 0)) {
		predictErr = fmt.Errorf("%w: %v", ErrNonFinite, rul)
	}

	if err := w.seq.wait(ctx, rec.Unit, rec.Seq); err != nil {
		return fmt.Errorf("worker %s: wait turn for unit %d: %w", w.id, rec.Unit, err)
	}
	defer w.seq.release(rec.Unit)

	if predictErr != nil {
		reason := metrics.ReasonPredict
		var shape *model.FeatureShapeError
		if errors.As(predictErr, &shape) {
			reason = metrics.ReasonShapeError
		}
		if w.opts.OnShapeError == OnShapeErrorFail {
			return fmt.Errorf("worker %s: unit %d cycle %d: %w", w.id, rec.Unit, rec.Cycle, predictErr)
		}
		metrics.RecordsSkippedTotal.WithLabelValues(reason).Inc()
		w.log.Warn("worker: record skipped", "unit", rec.Unit, "cycle", rec.Cycle, "reason", reason, "err", predictErr)
		return nil
	}

	out := types.PredictionRecord{Unit: rec.Unit, Cycle: rec.Cycle, RUL: rul}
	if err := w.out.Append(ctx, out); err != nil {
		return fmt.Errorf("worker %s: %w", w.id, err)
	}
	w.latest.Set(out)
	metrics.PredictionsTotal.WithLabelValues(w.id).Inc()
	w.log.Debug("worker: predicted", "unit", rec.Unit, "cycle", rec.Cycle, "rul", rul)
	return nil
}

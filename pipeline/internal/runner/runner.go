// Package runner wires one end-to-end inference run: load telemetry, derive
// features, check the trained artifacts, start the workers, dispatch every
// record, wait for the queue to drain and evaluate the final predictions.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rulstream/rulstream/pipeline/internal/config"
	"github.com/rulstream/rulstream/pipeline/internal/dispatch"
	"github.com/rulstream/rulstream/pipeline/internal/eval"
	"github.com/rulstream/rulstream/pipeline/internal/features"
	"github.com/rulstream/rulstream/pipeline/internal/model"
	"github.com/rulstream/rulstream/pipeline/internal/predlog"
	"github.com/rulstream/rulstream/pipeline/internal/queue"
	"github.com/rulstream/rulstream/pipeline/internal/retry"
	"github.com/rulstream/rulstream/pipeline/internal/source"
	"github.com/rulstream/rulstream/pipeline/internal/work"
	"github.com/rulstream/rulstream/pipeline/internal/worker"
	"github.com/rulstream/rulstream/pkg/types"
)

// ErrWorkersExited means every worker stopped while work was still queued.
var ErrWorkersExited = errors.New("runner: all workers exited before the queue drained")

// Result summarises a finished run.
type Result struct {
	RunID    string
	LogPath  string
	Dispatch dispatch.Stats
	Latest   []types.PredictionRecord
	// Eval is nil when no ground-truth file was configured.
	Eval *eval.Report
}

// Runner executes runs for one configuration.
type Runner struct {
	cfg   config.PipelineConfig
	store model.Store
	runID string
}

// New returns a Runner reading artifacts from store.
func New(cfg config.PipelineConfig, store model.Store, runID string) *Runner {
	return &Runner{cfg: cfg, store: store, runID: runID}
}

// StoreFor builds the artifact store the configuration points at.
func StoreFor(cfg config.ArtifactsConfig) (model.Store, error) {
	if !cfg.IsS3() {
		return model.DirStore{Dir: cfg.Location}, nil
	}
	return model.NewS3Store(cfg.Location, model.S3Options{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey(),
		SecretKey: cfg.S3.SecretKey(),
		UseSSL:    cfg.S3.UseSSL,
	})
}

func (r *Runner) retryPolicy() retry.Policy {
	return retry.Policy{
		Attempts: r.cfg.Retry.Attempts,
		Initial:  r.cfg.Retry.Initial,
		Max:      r.cfg.Retry.Max,
	}
}

func (r *Runner) load(ctx context.Context) (*model.Predictor, error) {
	return model.Load(ctx, r.store, model.Artifacts{
		Model:  r.cfg.Artifacts.Model,
		Scaler: r.cfg.Artifacts.Scaler,
	}, r.retryPolicy())
}

// Run performs one complete run. It fails before any record is dispatched
// when the data cannot be parsed or the artifacts cannot be loaded.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	log := slog.With("run_id", r.runID)

	ds, err := source.Load(source.Paths{
		Train: r.cfg.Data.TrainPath,
		Test:  r.cfg.Data.TestPath,
		RUL:   r.cfg.Data.RULPath,
	}, delimiter(r.cfg.Data.Delimiter))
	if err != nil {
		return nil, err
	}
	log.Info("runner: data loaded", "test_engines", len(ds.Test.Units()), "test_rows", len(ds.Test.Rows))
	if ds.Train != nil {
		labels := source.TrainingLabels(ds.Train, r.cfg.Data.RULCap)
		capped := 0
		for _, l := range labels {
			if l >= r.cfg.Data.RULCap {
				capped++
			}
		}
		log.Info("runner: training data validated", "train_engines", len(ds.Train.Units()),
			"train_rows", len(ds.Train.Rows), "capped_labels", capped)
	}

	table, names, err := r.transform(ds.Test)
	if err != nil {
		return nil, err
	}
	streams, err := source.Records(table, names)
	if err != nil {
		return nil, err
	}

	// Fail fast on missing or inconsistent artifacts before touching the log.
	pred, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	got := names
	if len(streams) > 0 && len(streams[0].Records) > 0 {
		got = streams[0].Records[0].Names()
	}
	if err := model.CheckShape(pred.FeatureNames(), got); err != nil {
		return nil, fmt.Errorf("runner: preflight: %w", err)
	}

	out, err := predlog.Open(r.cfg.Log.Path, predlog.Options{
		Truncate:  true,
		OmitCycle: r.cfg.Log.OmitCycle,
		Retry:     r.retryPolicy(),
	})
	if err != nil {
		return nil, err
	}
	defer out.Close()

	q := queue.New[work.Item](r.cfg.Queue.Capacity)
	latest := worker.NewLatest()
	pool, err := worker.NewPool(ctx, q, out, latest, func(ctx context.Context) (worker.Scorer, error) {
		return r.load(ctx)
	}, worker.Options{
		Count:        r.cfg.Workers.Count,
		Delay:        r.cfg.Workers.Delay,
		OnShapeError: r.cfg.Workers.OnShapeError,
		RunID:        r.runID,
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(runCtx)

	// Producer and join must not outlive the workers that would unblock them.
	drainCtx, stopDrain := context.WithCancel(runCtx)
	defer stopDrain()
	go func() {
		select {
		case <-pool.Done():
			stopDrain()
		case <-drainCtx.Done():
		}
	}()

	res := &Result{RunID: r.runID, LogPath: out.Path()}
	res.Dispatch, err = dispatch.Dispatch(drainCtx, q, streams, dispatch.Options{
		Consumers:  r.cfg.Workers.Count,
		Interleave: r.cfg.Dispatch.Interleave,
		Seed:       r.cfg.Dispatch.Seed,
		Delay:      r.cfg.Dispatch.Delay,
		RunID:      r.runID,
	})
	dispatched := err == nil
	if dispatched {
		err = q.Join(drainCtx)
	}
	if err != nil {
		cancel()
		werr := pool.Wait()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("runner: %w", ctx.Err())
		}
		// The last worker can exit on its sentinel just as the join starts
		// waiting; an empty queue after a complete dispatch is a clean drain.
		if drainFailed(dispatched, werr, q.Unfinished()) {
			return nil, errors.Join(fmt.Errorf("%w: %d items unprocessed", ErrWorkersExited, q.Unfinished()), werr)
		}
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	res.Latest = latest.Snapshot()
	log.Info("runner: run complete",
		"records", res.Dispatch.Records, "engines", len(res.Latest), "log", res.LogPath)
	if stale := unfinishedEngines(res.Latest, source.LastCycles(ds.Test)); len(stale) > 0 {
		log.Warn("runner: engines without a prediction at their final cycle", "units", stale)
	}

	if ds.Labels != nil {
		truth, err := source.TestLabels(ds.Test, ds.Labels)
		if err != nil {
			return nil, err
		}
		rep, err := eval.Evaluate(res.Latest, truth, r.cfg.Data.RULCap)
		if err != nil {
			log.Warn("runner: evaluation skipped", "err", err)
		} else {
			res.Eval = &rep
			log.Info("runner: evaluation", "engines", rep.Engines, "rmse", rep.RMSE, "mae", rep.MAE)
		}
	}
	return res, nil
}

// transform applies the configured feature derivation and returns the
// resulting table with the ordered model input names: base columns first,
// then their rolling means.
func (r *Runner) transform(t *source.Table) (*source.Table, []string, error) {
	base := r.cfg.Features.Columns
	if len(base) == 0 {
		base = features.SensorColumns(t)
	}
	names := append([]string(nil), base...)
	w := r.cfg.Features.RollingWindow
	if w == 0 {
		return t, names, nil
	}
	out, err := features.AddRolling(t, base, w)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range base {
		names = append(names, features.RollingName(n, w))
	}
	return out, names, nil
}

// drainFailed reports whether an interrupted dispatch or join left work
// behind. A complete dispatch whose queue emptied and whose workers exited
// cleanly counts as drained even if the join itself was cut short.
func drainFailed(dispatched bool, werr error, unfinished int) bool {
	return !dispatched || werr != nil || unfinished != 0
}

// unfinishedEngines lists the engines whose latest prediction is missing or
// older than their final recorded cycle.
func unfinishedEngines(latest []types.PredictionRecord, last map[int]int) []int {
	seen := make(map[int]int, len(latest))
	for _, rec := range latest {
		seen[rec.Unit] = rec.Cycle
	}
	var out []int
	for u, c := range last {
		if seen[u] < c {
			out = append(out, u)
		}
	}
	sort.Ints(out)
	return out
}

func delimiter(s string) source.Delimiter {
	if s == config.DelimiterComma {
		return source.Comma
	}
	return source.Whitespace
}

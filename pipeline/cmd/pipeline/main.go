package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/rulstream/rulstream/pipeline/internal/config"
	"github.com/rulstream/rulstream/pipeline/internal/metrics"
	"github.com/rulstream/rulstream/pipeline/internal/model"
	"github.com/rulstream/rulstream/pipeline/internal/runner"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file with artifact store credentials")
	hold := flag.Bool("hold", false, "keep serving /metrics after the run until interrupted")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	pc := cfg.Pipeline

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(pc.LogLevel)}))
	slog.SetDefault(logger)

	runID := uuid.NewString()
	slog.Info("rulstream-pipeline starting",
		"config", *configPath,
		"run_id", runID,
		"test_path", pc.Data.TestPath,
		"artifacts", pc.Artifacts.Location,
		"workers", pc.Workers.Count,
		"interleave", pc.Dispatch.Interleave,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var ms *metrics.Server
	if pc.MetricsAddr != "" {
		ms = metrics.NewServer(pc.MetricsAddr)
		ms.Start()
		slog.Info("metrics endpoint listening", "addr", pc.MetricsAddr)
	}

	store, err := runner.StoreFor(pc.Artifacts)
	if err != nil {
		slog.Error("failed to open artifact store", "err", err)
		os.Exit(1)
	}

	res, err := runner.New(pc, store, runID).Run(ctx)
	if err != nil {
		var missing *model.ArtifactMissingError
		if errors.As(err, &missing) {
			slog.Error("trained artifacts not found, run training first", "artifact", missing.Name, "location", missing.Location)
		} else {
			slog.Error("run failed", "err", err)
		}
		shutdownMetrics(ms)
		os.Exit(1)
	}

	slog.Info("rulstream-pipeline finished",
		"run_id", res.RunID,
		"records", res.Dispatch.Records,
		"engines", len(res.Latest),
		"log", res.LogPath,
	)
	if res.Eval != nil {
		slog.Info("evaluation", "engines", res.Eval.Engines, "rmse", res.Eval.RMSE, "mae", res.Eval.MAE, "missing", res.Eval.Missing)
	}

	if *hold && ms != nil {
		slog.Info("holding metrics endpoint open until interrupted")
		<-ctx.Done()
	}
	shutdownMetrics(ms)
}

func shutdownMetrics(ms *metrics.Server) {
	if ms == nil {
		return
	}
	if err := ms.Err(); err != nil {
		slog.Warn("metrics endpoint failed", "err", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ms.Shutdown(ctx)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

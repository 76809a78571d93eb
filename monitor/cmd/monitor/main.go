package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rulstream/rulstream/monitor/internal/alerts"
	"github.com/rulstream/rulstream/monitor/internal/api"
	"github.com/rulstream/rulstream/monitor/internal/auth"
	"github.com/rulstream/rulstream/monitor/internal/config"
	"github.com/rulstream/rulstream/monitor/internal/poller"
	"github.com/rulstream/rulstream/monitor/internal/scraper"
	"github.com/rulstream/rulstream/monitor/internal/store"
	"github.com/rulstream/rulstream/monitor/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file with API key and webhook URLs")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load env file", "path", *envFile, "err", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	mc := cfg.Monitor

	// The table owns stdout when the console is on.
	var logOut io.Writer = os.Stdout
	if mc.Console {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{Level: parseLevel(mc.LogLevel)}))
	slog.SetDefault(logger)

	slog.Info("rulstream-monitor starting",
		"config", *configPath,
		"log_path", mc.LogPath,
		"poll_interval", mc.PollInterval,
		"delta_mode", mc.DeltaMode,
		"http_port", mc.HTTPPort,
		"auth_mode", mc.Auth.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New()

	var hist *store.History
	if mc.Storage.Path != "" {
		hist, err = store.OpenHistory(mc.Storage.Path, mc.Storage.Retention)
		if err != nil {
			slog.Error("failed to open history database", "path", mc.Storage.Path, "err", err)
			os.Exit(1)
		}
		defer hist.Close()
		go hist.Run(ctx, mc.Storage.PruneInterval)
	}

	alertEngine, err := alerts.New(mc.Alerts)
	if err != nil {
		slog.Error("invalid alert rules", "err", err)
		os.Exit(1)
	}

	var sc *scraper.Scraper
	if mc.PipelineMetrics.Endpoint != "" {
		sc = scraper.New(mc.PipelineMetrics.Endpoint, mc.PipelineMetrics.Timeout)
	}

	hub := ws.New(st)
	go hub.Run(ctx)

	deps := poller.Deps{Store: st, History: hist, Alerts: alertEngine, Scraper: sc, Hub: hub}
	if mc.Console {
		deps.Console = os.Stdout
	}
	p, err := poller.New(deps, poller.SettingsFrom(mc))
	if err != nil {
		slog.Error("failed to create poller", "err", err)
		os.Exit(1)
	}

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			if err := p.Update(poller.SettingsFrom(next.Monitor)); err != nil {
				slog.Warn("config reload rejected", "err", err)
			}
			if err := alertEngine.Reload(next.Monitor.Alerts); err != nil {
				slog.Warn("alert rules reload rejected", "err", err)
			}
		})
		if err != nil {
			slog.Warn("config watcher stopped", "err", err)
		}
	}()

	var httpSrv *http.Server
	if mc.HTTPPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/api/", api.New(st, hist, alertEngine))
		mux.Handle("/ws/stream", hub)

		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", mc.HTTPPort),
			Handler:           auth.Middleware(mc.Auth.Mode, mc.Auth.EffectiveHeader(), mc.Auth.Key(), mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP server listening", "port", mc.HTTPPort)
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("HTTP server stopped", "err", err)
			}
		}()
	}

	p.Run(ctx)

	slog.Info("rulstream-monitor shutting down")
	if httpSrv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
		stop()
	}
	alertEngine.Wait()
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

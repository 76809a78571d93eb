// Package config loads and watches the monitor configuration from the
// `monitor:` section of config.yaml (the `pipeline:` key is ignored).
//
// Config fields:
//   - LogPath: prediction log to rescan (default model/predictions.log)
//   - PollInterval: time between rescans (default 2s)
//   - Thresholds: healthy/minor/major RUL boundaries (default 100/50/20)
//   - DeltaMode: "rescan" or "poll"
//   - HTTPPort: REST API and WebSocket hub (default 8080, 0 disables)
//   - Auth: "apikey" or "none", key resolved from KeyEnv
//   - PipelineMetrics: pipeline /metrics URL to scrape
//   - Storage: SQLite history path and retention
//   - Alerts: per-engine rules and webhook targets
//
// Watch(ctx, path, onChange) uses fsnotify on the parent directory so that
// editors which save by rename still trigger a reload.
package config

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for the monitor configuration.
const (
	DefaultLogPath        = "model/predictions.log"
	DefaultPollInterval   = 2 * time.Second
	DefaultHealthy        = 100
	DefaultMinor          = 50
	DefaultMajor          = 20
	DefaultHTTPPort       = 8080
	DefaultScrapeTimeout  = 2 * time.Second
	DefaultRetention      = 24 * time.Hour
	DefaultPruneInterval  = 10 * time.Minute
	DefaultAlertCooldown  = 15 * time.Minute
	DeltaModeRescan       = "rescan"
	DeltaModePoll         = "poll"
	DefaultAuthHeaderName = "x-api-key"
)

// Config holds the monitor-side configuration parsed from the `monitor:`
// section of config.yaml. The `pipeline:` key in the same file is ignored.
type Config struct {
	Monitor MonitorConfig `yaml:"monitor"`
}

// MonitorConfig holds all monitor settings.
type MonitorConfig struct {
	LogLevel string `yaml:"log_level"`

	// LogPath is the prediction log written by the pipeline.
	LogPath string `yaml:"log_path"`

	// PollInterval is the time between full rescans of the log.
	PollInterval time.Duration `yaml:"poll_interval"`

	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// DeltaMode selects what ΔRUL is measured against: "rescan" compares an
	// engine's last two records in the log, "poll" compares with the RUL
	// shown at the previous poll.
	DeltaMode string `yaml:"delta_mode"`

	// Console renders the fleet table to stdout after every poll.
	Console bool `yaml:"console"`
	// ClearScreen redraws the table in place using ANSI escapes.
	ClearScreen bool `yaml:"clear_screen"`

	// HTTPPort is the port for the REST API and WebSocket hub; 0 disables both.
	HTTPPort int `yaml:"http_port"`

	Auth AuthConfig `yaml:"auth"`

	PipelineMetrics PipelineMetricsConfig `yaml:"pipeline_metrics"`

	Storage StorageConfig `yaml:"storage"`

	Alerts AlertsConfig `yaml:"alerts"`
}

// ThresholdsConfig holds the RUL boundaries between health states.
type ThresholdsConfig struct {
	Healthy float64 `yaml:"healthy"`
	Minor   float64 `yaml:"minor"`
	Major   float64 `yaml:"major"`
}

// AuthConfig controls API client authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header to read the key from. Defaults to "x-api-key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAuthHeaderName
}

// PipelineMetricsConfig points at the pipeline's Prometheus endpoint.
type PipelineMetricsConfig struct {
	// Endpoint is the full /metrics URL. Empty disables scraping.
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StorageConfig configures the poll history database.
type StorageConfig struct {
	// Path is the SQLite database file. Empty disables history.
	Path string `yaml:"path"`

	// Retention is how long history rows are kept.
	Retention time.Duration `yaml:"retention"`

	// PruneInterval is how often expired rows are deleted.
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one per-engine alert condition.
type AlertRule struct {
	// Name identifies the rule; together with the engine it deduplicates alerts.
	Name string `yaml:"name"`

	// Condition is "field op value" over rul, delta, cycle or status,
	// e.g. "rul < 30", "delta <= -25", "status == broken".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration. Defaults to 15 minutes.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("monitor config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("monitor config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("monitor config: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Monitor: MonitorConfig{
			LogLevel:     "info",
			LogPath:      DefaultLogPath,
			PollInterval: DefaultPollInterval,
			Thresholds: ThresholdsConfig{
				Healthy: DefaultHealthy,
				Minor:   DefaultMinor,
				Major:   DefaultMajor,
			},
			DeltaMode:   DeltaModeRescan,
			Console:     true,
			ClearScreen: true,
			HTTPPort:    DefaultHTTPPort,
			PipelineMetrics: PipelineMetricsConfig{
				Timeout: DefaultScrapeTimeout,
			},
			Storage: StorageConfig{
				Retention:     DefaultRetention,
				PruneInterval: DefaultPruneInterval,
			},
		},
	}
}

func validate(cfg *Config) error {
	m := cfg.Monitor
	if m.LogPath == "" {
		return fmt.Errorf("monitor.log_path is required")
	}
	if m.PollInterval <= 0 {
		return fmt.Errorf("monitor.poll_interval must be positive")
	}
	t := m.Thresholds
	if !(t.Healthy > t.Minor && t.Minor > t.Major && t.Major >= 0) {
		return fmt.Errorf("monitor.thresholds must satisfy healthy > minor > major >= 0, got %v/%v/%v",
			t.Healthy, t.Minor, t.Major)
	}
	switch m.DeltaMode {
	case DeltaModeRescan, DeltaModePoll:
	default:
		return fmt.Errorf("monitor.delta_mode %q unknown: want rescan|poll", m.DeltaMode)
	}
	if m.HTTPPort < 0 || m.HTTPPort > 65535 {
		return fmt.Errorf("monitor.http_port %d is out of range [0, 65535]", m.HTTPPort)
	}
	switch m.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("monitor.auth.mode %q unknown: want apikey|none", m.Auth.Mode)
	}
	if m.PipelineMetrics.Timeout <= 0 {
		return fmt.Errorf("monitor.pipeline_metrics.timeout must be positive")
	}
	if m.Storage.Retention < 0 || m.Storage.PruneInterval <= 0 {
		return fmt.Errorf("monitor.storage retention must not be negative and prune_interval must be positive")
	}
	for i, r := range m.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("monitor.alerts.rules[%d]: name is required", i)
		}
		if r.Condition == "" {
			return fmt.Errorf("monitor.alerts.rules[%d] %q: condition is required", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("monitor.alerts.rules[%d] %q: unknown severity %q", i, r.Name, r.Severity)
		}
	}
	for i, w := range m.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("monitor.alerts.webhooks[%d]: unknown type %q", i, w.Type)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultRULCap        = 165
	DefaultRollingWindow = 20
	DefaultWorkerCount   = 3
	DefaultLogPath       = "model/predictions.log"
	DefaultArtifactDir   = "model"
	DefaultModelObject   = "model.yaml"
	DefaultScalerObject  = "scaler.yaml"
	DefaultRetryAttempts = 3
	DefaultRetryInitial  = 100 * time.Millisecond
	DefaultRetryMax      = 2 * time.Second
	ShapeErrorSkip       = "skip"
	ShapeErrorFail       = "fail"
	DelimiterWhitespace  = "whitespace"
	DelimiterComma       = "comma"
)

// Config is the pipeline-side view of config.yaml.
type Config struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// PipelineConfig holds all pipeline settings.
type PipelineConfig struct {
	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Data      DataConfig      `yaml:"data"`
	Features  FeaturesConfig  `yaml:"features"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Queue     QueueConfig     `yaml:"queue"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Workers   WorkersConfig   `yaml:"workers"`
	Log       LogConfig       `yaml:"log"`
	Retry     RetryConfig     `yaml:"retry"`

	// MetricsAddr is the listen address of the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// DataConfig points at the historical run-to-failure files.
type DataConfig struct {
	// TrainPath is optional for inference; when set it is parsed and validated.
	TrainPath string `yaml:"train_path"`
	TestPath  string `yaml:"test_path"`
	// RULPath is the ground-truth file (one value per test engine). Optional;
	// without it no end-of-run evaluation is reported.
	RULPath string `yaml:"rul_path"`

	// Delimiter is whitespace (default) or comma.
	Delimiter string `yaml:"delimiter"`

	// RULCap is the ceiling applied to computed labels, both for training
	// labels and for the evaluation step.
	RULCap float64 `yaml:"rul_cap"`
}

// FeaturesConfig controls the feature transform.
type FeaturesConfig struct {
	// RollingWindow is the moving-average window. 0 disables derived features.
	RollingWindow int `yaml:"rolling_window"`

	// Columns lists the raw columns fed to the model, in scaler order.
	// Empty means every sensor_measurement_* column.
	Columns []string `yaml:"columns"`
}

// ArtifactsConfig locates the trained model and scaler.
type ArtifactsConfig struct {
	// Location is a directory path or s3://bucket/prefix.
	Location string   `yaml:"location"`
	Model    string   `yaml:"model"`
	Scaler   string   `yaml:"scaler"`
	S3       S3Config `yaml:"s3"`
}

// IsS3 reports whether the artifacts live in an S3-compatible object store.
func (a ArtifactsConfig) IsS3() bool {
	return strings.HasPrefix(a.Location, "s3://")
}

// S3Config holds object-store connection settings for s3:// locations.
type S3Config struct {
	Endpoint string `yaml:"endpoint"`
	UseSSL   bool   `yaml:"use_ssl"`
	// AccessKeyEnv and SecretKeyEnv name the environment variables holding credentials.
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// AccessKey returns the access key resolved from the environment.
func (s S3Config) AccessKey() string {
	if s.AccessKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.AccessKeyEnv)
}

// SecretKey returns the secret key resolved from the environment.
func (s S3Config) SecretKey() string {
	if s.SecretKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.SecretKeyEnv)
}

// QueueConfig controls the work queue between dispatcher and workers.
type QueueConfig struct {
	// Capacity bounds the queue; 0 means unbounded (Put never blocks).
	Capacity int `yaml:"capacity"`
}

// DispatchConfig controls the producer.
type DispatchConfig struct {
	// Interleave picks a random engine for every record instead of draining
	// engines one after another.
	Interleave bool `yaml:"interleave"`

	// Seed fixes the interleaving order. 0 seeds from the clock.
	Seed int64 `yaml:"seed"`

	// Delay paces enqueues to emulate live telemetry arrival.
	Delay time.Duration `yaml:"delay"`
}

// WorkersConfig controls the inference worker pool.
type WorkersConfig struct {
	Count int `yaml:"count"`

	// Delay is slept after every scored record.
	Delay time.Duration `yaml:"delay"`

	// OnShapeError is skip (log and drop the record) or fail (halt the worker).
	OnShapeError string `yaml:"on_shape_error"`
}

// LogConfig controls the prediction log.
type LogConfig struct {
	Path string `yaml:"path"`

	// OmitCycle writes {"unit", "rul"} lines without the cycle field.
	OmitCycle bool `yaml:"omit_cycle"`
}

// RetryConfig bounds retries around log appends and artifact loads.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Initial  time.Duration `yaml:"initial"`
	Max      time.Duration `yaml:"max"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config pre-populated with default values.
func Defaults() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			LogLevel: "info",
			Data: DataConfig{
				Delimiter: DelimiterWhitespace,
				RULCap:    DefaultRULCap,
			},
			Features: FeaturesConfig{
				RollingWindow: DefaultRollingWindow,
			},
			Artifacts: ArtifactsConfig{
				Location: DefaultArtifactDir,
				Model:    DefaultModelObject,
				Scaler:   DefaultScalerObject,
			},
			Workers: WorkersConfig{
				Count:        DefaultWorkerCount,
				OnShapeError: ShapeErrorSkip,
			},
			Log: LogConfig{
				Path: DefaultLogPath,
			},
			Retry: RetryConfig{
				Attempts: DefaultRetryAttempts,
				Initial:  DefaultRetryInitial,
				Max:      DefaultRetryMax,
			},
		},
	}
}

// Validate checks required fields and structural constraints.
func Validate(cfg *Config) error {
	p := cfg.Pipeline
	if p.Data.TestPath == "" {
		return fmt.Errorf("pipeline.data.test_path is required")
	}
	switch p.Data.Delimiter {
	case DelimiterWhitespace, DelimiterComma:
	default:
		return fmt.Errorf("pipeline.data.delimiter %q unknown: want whitespace|comma", p.Data.Delimiter)
	}
	if p.Data.RULCap <= 0 {
		return fmt.Errorf("pipeline.data.rul_cap must be positive")
	}
	if p.Features.RollingWindow < 0 {
		return fmt.Errorf("pipeline.features.rolling_window must not be negative")
	}
	if p.Artifacts.Location == "" {
		return fmt.Errorf("pipeline.artifacts.location is required")
	}
	if p.Artifacts.Model == "" || p.Artifacts.Scaler == "" {
		return fmt.Errorf("pipeline.artifacts.model and pipeline.artifacts.scaler are required")
	}
	if p.Artifacts.IsS3() && p.Artifacts.S3.Endpoint == "" {
		return fmt.Errorf("pipeline.artifacts.s3.endpoint is required for %q", p.Artifacts.Location)
	}
	if p.Queue.Capacity < 0 {
		return fmt.Errorf("pipeline.queue.capacity must not be negative")
	}
	if p.Dispatch.Delay < 0 || p.Workers.Delay < 0 {
		return fmt.Errorf("pipeline dispatch/worker delays must not be negative")
	}
	if p.Workers.Count < 1 {
		return fmt.Errorf("pipeline.workers.count must be at least 1")
	}
	switch p.Workers.OnShapeError {
	case ShapeErrorSkip, ShapeErrorFail:
	default:
		return fmt.Errorf("pipeline.workers.on_shape_error %q unknown: want skip|fail", p.Workers.OnShapeError)
	}
	if p.Log.Path == "" {
		return fmt.Errorf("pipeline.log.path is required")
	}
	if p.Retry.Attempts < 1 {
		return fmt.Errorf("pipeline.retry.attempts must be at least 1")
	}
	if p.Retry.Initial <= 0 || p.Retry.Max < p.Retry.Initial {
		return fmt.Errorf("pipeline.retry: initial must be positive and not exceed max")
	}
	switch p.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("pipeline.log_level %q unknown", p.LogLevel)
	}
	return nil
}

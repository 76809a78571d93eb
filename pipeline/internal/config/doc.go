// Package config loads the pipeline section of config.yaml.
//
// Top-level types:
//   - Config{Pipeline}: the parsed file; the `monitor:` key is ignored here
//   - PipelineConfig: data sources, feature window, RUL cap, artifacts,
//     queue, dispatch, workers, prediction log, retry and metrics settings
//   - ArtifactsConfig: where the trained model and scaler live: a local
//     directory or an s3://bucket/prefix location with S3Config credentials
//     resolved from environment variables
//
// Load(path) reads the YAML file, applies defaults (rul_cap 165, rolling
// window 20, 3 workers, unbounded queue, skip on shape errors) and validates
// required fields and enums. Deployment variants (cap 165 vs 195, log with or
// without cycles) are plain settings here rather than constants elsewhere.
package config

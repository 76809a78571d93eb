// Package model adapts a trained scaler and regression model into a scoring
// function over named feature vectors.
//
// Artifacts are produced by the training collaborator and read here as YAML
// (JSON is accepted as well):
//
//	# scaler.yaml
//	kind: minmax
//	feature_names: [sensor_measurement_2, sensor_measurement_3, ...]
//	data_min: [...]
//	data_max: [...]
//	feature_range: [0, 1]
//
//	# model.yaml
//	kind: linear | svr | script
//	coef: [...]            # linear
//	intercept: 112.4       # linear, svr
//	kernel: rbf            # svr
//	gamma: 0.05            # svr
//	support_vectors: [[...], ...]
//	dual_coef: [...]
//	n_features: 42         # script
//	source: |              # script; evaluated with goja
//	  function predict(x) { return 120 - 40 * x[3]; }
//
// Predictor.Predict checks the record's feature names against the order the
// scaler was fitted with and fails with *FeatureShapeError on any mismatch.
// A Predictor is not safe for concurrent use: script models own a JavaScript
// runtime, so every worker loads its own Predictor.
//
// Load reads both artifacts from a Store (a directory or an S3-compatible
// bucket). A missing artifact yields *ArtifactMissingError; transient read
// errors are retried.
package model

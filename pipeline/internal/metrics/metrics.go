// Package metrics exposes pipeline counters and gauges for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RecordsEnqueuedTotal counts sensor records put on the work queue.
var RecordsEnqueuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rulstream_pipeline_records_enqueued_total",
		Help: "Total sensor records enqueued",
	},
)

// SentinelsEnqueuedTotal counts shutdown sentinels put on the work queue.
var SentinelsEnqueuedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rulstream_pipeline_sentinels_enqueued_total",
		Help: "Total shutdown sentinels enqueued",
	},
)

// PredictionsTotal counts predictions appended to the log.
var PredictionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rulstream_pipeline_predictions_total",
		Help: "Total predictions appended to the prediction log",
	},
	[]string{"worker"},
)

// RecordsSkippedTotal counts records a worker dropped without a prediction.
var RecordsSkippedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rulstream_pipeline_records_skipped_total",
		Help: "Total records dropped without a prediction",
	},
	[]string{"reason"},
)

// LogAppendRetriesTotal counts retried prediction log appends.
var LogAppendRetriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "rulstream_pipeline_log_append_retries_total",
		Help: "Total prediction log appends that were retried",
	},
)

// QueueDepth is the number of items waiting on the work queue.
var QueueDepth = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "rulstream_pipeline_queue_depth",
		Help: "Items waiting on the work queue",
	},
)

// ActiveWorkers is the number of running inference workers.
var ActiveWorkers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "rulstream_pipeline_active_workers",
		Help: "Running inference workers",
	},
)

// PredictionDuration tracks scoring latency per record.
var PredictionDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "rulstream_pipeline_prediction_duration_seconds",
		Help:    "Scoring latency per record",
		Buckets: prometheus.ExponentialBuckets(0.00005, 4, 8),
	},
)

// Skip reasons.
const (
	ReasonShapeError = "shape_error"
	ReasonPredict    = "predict_error"
)

// Package scraper reads the pipeline's Prometheus endpoint and condenses it
// into the few numbers the monitor displays next to the fleet table.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Pipeline metric names.
const (
	metricEnqueued   = "rulstream_pipeline_records_enqueued_total"
	metricSentinels  = "rulstream_pipeline_sentinels_enqueued_total"
	metricPredicted  = "rulstream_pipeline_predictions_total"
	metricSkipped    = "rulstream_pipeline_records_skipped_total"
	metricRetries    = "rulstream_pipeline_log_append_retries_total"
	metricQueueDepth = "rulstream_pipeline_queue_depth"
	metricActive     = "rulstream_pipeline_active_workers"
	metricLatency    = "rulstream_pipeline_prediction_duration_seconds"
)

// PipelineStats is one scrape of the pipeline. Counters are raw totals.
type PipelineStats struct {
	RecordsEnqueued   float64            `json:"records_enqueued"`
	SentinelsEnqueued float64            `json:"sentinels_enqueued"`
	Predictions       float64            `json:"predictions"`
	Skipped           float64            `json:"skipped"`
	LogAppendRetries  float64            `json:"log_append_retries"`
	QueueDepth        float64            `json:"queue_depth"`
	ActiveWorkers     float64            `json:"active_workers"`
	MeanPredictionMS  float64            `json:"mean_prediction_ms"`
	PerWorker         map[string]float64 `json:"per_worker,omitempty"`
	ScrapedAt         time.Time          `json:"scraped_at"`
}

// Scraper fetches one endpoint with a reusable client.
type Scraper struct {
	endpoint string
	client   *http.Client
}

// New returns a Scraper for the pipeline's /metrics URL.
func New(endpoint string, timeout time.Duration) *Scraper {
	return &Scraper{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// Endpoint returns the scraped URL.
func (s *Scraper) Endpoint() string { return s.endpoint }

// Scrape fetches and summarises the pipeline metrics.
func (s *Scraper) Scrape(ctx context.Context) (*PipelineStats, error) {
	mfs, err := fetchMetrics(ctx, s.client, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("scraper: %s: %w", s.endpoint, err)
	}
	return summarise(mfs, time.Now().UTC()), nil
}

func summarise(mfs map[string]*dto.MetricFamily, now time.Time) *PipelineStats {
	st := &PipelineStats{
		RecordsEnqueued:   sumFamily(mfs[metricEnqueued]),
		SentinelsEnqueued: sumFamily(mfs[metricSentinels]),
		Predictions:       sumFamily(mfs[metricPredicted]),
		Skipped:           sumFamily(mfs[metricSkipped]),
		LogAppendRetries:  sumFamily(mfs[metricRetries]),
		QueueDepth:        sumFamily(mfs[metricQueueDepth]),
		ActiveWorkers:     sumFamily(mfs[metricActive]),
		PerWorker:         byLabel(mfs[metricPredicted], "worker"),
		ScrapedAt:         now,
	}
	if sum, count := histogramTotals(mfs[metricLatency]); count > 0 {
		st.MeanPredictionMS = sum / count * 1000
	}
	return st
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition. A partial parse with
// at least one family is treated as success.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in mf.
// Returns 0 if mf is nil.
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

// byLabel splits a counter family by one label's values.
func byLabel(mf *dto.MetricFamily, label string) map[string]float64 {
	if mf == nil {
		return nil
	}
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label {
				out[lp.GetValue()] += m.GetCounter().GetValue()
			}
		}
	}
	return out
}

func histogramTotals(mf *dto.MetricFamily) (sum, count float64) {
	if mf == nil {
		return 0, 0
	}
	for _, m := range mf.GetMetric() {
		if h := m.GetHistogram(); h != nil {
			sum += h.GetSampleSum()
			count += float64(h.GetSampleCount())
		}
	}
	return sum, count
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionsTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(PredictionsTotal.WithLabelValues("w-test"))
	PredictionsTotal.WithLabelValues("w-test").Inc()
	after := testutil.ToFloat64(PredictionsTotal.WithLabelValues("w-test"))

	assert.Equal(t, before+1, after)
}

func TestRecordsSkippedTotal_ByReason(t *testing.T) {
	before := testutil.ToFloat64(RecordsSkippedTotal.WithLabelValues(ReasonShapeError))
	RecordsSkippedTotal.WithLabelValues(ReasonShapeError).Add(2)

	assert.Equal(t, before+2, testutil.ToFloat64(RecordsSkippedTotal.WithLabelValues(ReasonShapeError)))
}

func TestQueueDepth_Set(t *testing.T) {
	QueueDepth.Set(4)
	assert.Equal(t, float64(4), testutil.ToFloat64(QueueDepth))
}

func TestPredictionDuration_Observe(t *testing.T) {
	PredictionDuration.Observe(0.002)
	assert.Greater(t, testutil.CollectAndCount(PredictionDuration), 0)
}

func TestServer_ServesMetrics(t *testing.T) {
	server := NewServer("127.0.0.1:19464")
	server.Start()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, server.Err())

	RecordsEnqueuedTotal.Inc()
	resp, err := http.Get("http://127.0.0.1:19464/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "rulstream_pipeline_records_enqueued_total"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

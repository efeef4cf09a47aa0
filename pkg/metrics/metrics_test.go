package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("metrics_test_source")

	c.CycleCompleted("success")
	c.CycleCompleted("success")
	c.CycleCompleted("empty")
	c.RowsExtracted(42)
	c.ConnectionReset("close")
	c.SetCursor(1600, 2000)
	c.SetAttempt(3)
	c.ObserveQuery("extract", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(Cycles.WithLabelValues("metrics_test_source", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(Cycles.WithLabelValues("metrics_test_source", "empty")))
	assert.Equal(t, 42.0, testutil.ToFloat64(RowsExtracted.WithLabelValues("metrics_test_source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(ConnectionResets.WithLabelValues("metrics_test_source", "close")))
	assert.Equal(t, 1600.0, testutil.ToFloat64(CursorPosition.WithLabelValues("metrics_test_source")))
	assert.Equal(t, 400.0, testutil.ToFloat64(CursorLag.WithLabelValues("metrics_test_source")))
	assert.Equal(t, 3.0, testutil.ToFloat64(AttemptCounter.WithLabelValues("metrics_test_source")))
}

func TestSinkWrite(t *testing.T) {
	SinkWrite("metrics_test_sink", nil)
	SinkWrite("metrics_test_sink", errors.New("broker down"))
	SinkWrite("metrics_test_sink", nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(SinkWrites.WithLabelValues("metrics_test_sink", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(SinkWrites.WithLabelValues("metrics_test_sink", "failure")))
}

func TestHandler(t *testing.T) {
	NewCollector("metrics_test_handler").CycleCompleted("failed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sqlpoller_cycles_total{outcome="failed",source="metrics_test_handler"} 1`)
}

func TestThroughputTracker(t *testing.T) {
	tr := NewThroughputTracker("metrics_test_source", "metrics_test_sink")
	tr.Increment(100)
	time.Sleep(10 * time.Millisecond)

	rate := tr.GetAndReset()
	assert.Greater(t, rate, 0.0)
	assert.InDelta(t, rate, testutil.ToFloat64(Throughput.WithLabelValues("metrics_test_source", "metrics_test_sink")), 0.0001)
}

func TestProcessSampler(t *testing.T) {
	s, err := NewProcessSampler()
	require.NoError(t, err)

	usage, err := s.Sample()
	require.NoError(t, err)
	assert.Positive(t, usage.RSSBytes)
	assert.Equal(t, float64(usage.RSSBytes), testutil.ToFloat64(ProcessResidentBytes))
}

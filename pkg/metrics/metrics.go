// Package metrics exposes Prometheus metrics for sqlpoller.
//
// # Overview
//
// Every polling source reports through a Collector bound to its name:
//
//	collector := metrics.NewCollector("orders")
//	collector.CycleCompleted("success")
//	collector.RowsExtracted(250)
//	collector.SetCursor(cursor, dbNow)
//
// Sinks report deliveries with SinkWrite. Handler serves the default
// registry, usually mounted at /metrics.
//
// # Metric Types
//
// Counter: cycles, extracted rows, connection resets, sink writes
// Gauge: cursor position, cursor lag, attempt counter, throughput
// Histogram: database round trip latency
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sqlpoller"

var (
	// Cycles counts extraction cycles by outcome.
	// Labels: source, outcome (success/empty/failed/skipped/misconfigured)
	Cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of extraction cycles",
		},
		[]string{"source", "outcome"},
	)

	// RowsExtracted counts rows returned by extraction queries
	RowsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Total number of rows extracted",
		},
		[]string{"source"},
	)

	// ConnectionResets counts Reset calls by the branch taken.
	// Labels: source, action (close/reopen/none)
	ConnectionResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_resets_total",
			Help:      "Total number of connection resets",
		},
		[]string{"source", "action"},
	)

	// CursorPosition is the current cursor in seconds since epoch
	CursorPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_position",
			Help:      "Current cursor in seconds since epoch",
		},
		[]string{"source"},
	)

	// CursorLag is the distance between the database clock and the cursor
	CursorLag = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor_lag_seconds",
			Help:      "Database time minus cursor, in seconds",
		},
		[]string{"source"},
	)

	// AttemptCounter is the number of consecutive cycles without progress
	AttemptCounter = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "attempt_counter",
			Help:      "Current window attempt counter",
		},
		[]string{"source"},
	)

	// QueryDuration tracks database round trips.
	// Labels: source, operation (now/extract)
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Database query latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"source", "operation"},
	)

	// SinkWrites counts batch deliveries.
	// Labels: sink, status (success/failure)
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Total number of batch writes to sinks",
		},
		[]string{"sink", "status"},
	)

	// Throughput tracks rows per second delivered from a source to a sink
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "throughput_rows_per_second",
			Help:      "Current throughput in rows per second",
		},
		[]string{"source", "sink"},
	)
)

// Collector binds the source label of the package level metrics.
type Collector struct {
	source string
}

// NewCollector creates a collector for one source
func NewCollector(source string) *Collector {
	return &Collector{source: source}
}

// CycleCompleted counts one cycle with the given outcome
func (c *Collector) CycleCompleted(outcome string) {
	Cycles.WithLabelValues(c.source, outcome).Inc()
}

// RowsExtracted adds n extracted rows
func (c *Collector) RowsExtracted(n int) {
	RowsExtracted.WithLabelValues(c.source).Add(float64(n))
}

// ConnectionReset counts one reset
func (c *Collector) ConnectionReset(action string) {
	ConnectionResets.WithLabelValues(c.source, action).Inc()
}

// SetCursor records the cursor and, when the database time is known
// (dbNow > 0), the lag behind it.
func (c *Collector) SetCursor(cursor, dbNow int64) {
	CursorPosition.WithLabelValues(c.source).Set(float64(cursor))
	if dbNow > 0 {
		CursorLag.WithLabelValues(c.source).Set(float64(dbNow - cursor))
	}
}

// SetAttempt records the attempt counter
func (c *Collector) SetAttempt(attempt int64) {
	AttemptCounter.WithLabelValues(c.source).Set(float64(attempt))
}

// ObserveQuery records the latency of one database round trip
func (c *Collector) ObserveQuery(operation string, d time.Duration) {
	QueryDuration.WithLabelValues(c.source, operation).Observe(d.Seconds())
}

// SinkWrite counts one batch delivery attempt outcome
func SinkWrite(sink string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	SinkWrites.WithLabelValues(sink, status).Inc()
}

// Handler serves the default Prometheus registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks rows per second between a source and a sink.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows delivered since last reset
	lastReset time.Time // Time of last reset
	source    string
	sink      string
}

// NewThroughputTracker creates a new throughput tracker for a source/sink pair.
func NewThroughputTracker(source, sink string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		source:    source,
		sink:      sink,
	}
}

// Increment adds n to the row count
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the throughput since the last reset, publishes it
// and starts a new period.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.source, t.sink).Set(throughput)

	return throughput
}

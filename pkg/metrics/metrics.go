// Package metrics provides Prometheus-based observability for Atlasync.
// It exposes counters, gauges and histograms for extraction throughput,
// request latency and pipeline health, plus small helpers for timing and
// throughput tracking.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsProcessed tracks records moved through a pipeline.
	// Labels: source, destination, status (success/failure)
	RecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlasync_records_processed_total",
			Help: "Total number of records processed",
		},
		[]string{"source", "destination", "status"},
	)

	// PagesFetched tracks API pages retrieved per resource.
	// Labels: source, resource
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlasync_pages_fetched_total",
			Help: "Total number of API pages fetched",
		},
		[]string{"source", "resource"},
	)

	// RequestLatency tracks HTTP request latency in seconds.
	// Labels: operation, source
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "atlasync_request_latency_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "source"},
	)

	// TokenRefreshes tracks OAuth token refresh attempts.
	// Labels: status (success/failure)
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "atlasync_token_refreshes_total",
			Help: "Total number of OAuth token refresh attempts",
		},
		[]string{"status"},
	)

	// ActiveConnections tracks open connections per target.
	ActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlasync_active_connections",
			Help: "Number of active connections",
		},
		[]string{"type", "target"},
	)

	// QueueDepth tracks pipeline channel depths.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlasync_queue_depth",
			Help: "Current queue depth",
		},
		[]string{"queue_name"},
	)

	// Throughput tracks records per second per pipeline.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atlasync_throughput_records_per_second",
			Help: "Current throughput in records per second",
		},
		[]string{"source", "destination"},
	)
)

// Collector is a per-component handle over the shared metric vectors.
// Each connector or pipeline stage should create its own.
type Collector struct {
	name      string
	startTime time.Time
}

// NewCollector creates a collector labeled with the component name.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
	}
}

// StartTime returns when the collector was created.
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// RecordsExtracted increments the processed-records counter for this
// component as the source side.
func (c *Collector) RecordsExtracted(destination, status string, n float64) {
	RecordsProcessed.WithLabelValues(c.name, destination, status).Add(n)
}

// PageFetched increments the fetched-pages counter for a resource.
func (c *Collector) PageFetched(resource string) {
	PagesFetched.WithLabelValues(c.name, resource).Inc()
}

// ObserveLatency records a request latency for an operation.
func (c *Collector) ObserveLatency(operation string, d time.Duration) {
	RequestLatency.WithLabelValues(operation, c.name).Observe(d.Seconds())
}

// Timer measures an operation's duration from creation to Stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop returns the elapsed duration since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks records per second over reset windows.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu          sync.Mutex
	count       int64
	lastReset   time.Time
	source      string
	destination string
}

// NewThroughputTracker creates a tracker for a source/destination pair.
func NewThroughputTracker(source, destination string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset:   time.Now(),
		source:      source,
		destination: destination,
	}
}

// Increment adds n to the record count.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset computes records/second since the last reset, publishes the
// gauge, resets the window and returns the value.
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

	Throughput.WithLabelValues(t.source, t.destination).Set(throughput)
	return throughput
}

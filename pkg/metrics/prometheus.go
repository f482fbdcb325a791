// Package metrics provides Prometheus metrics for the scout aggregation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the scout service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Extraction Metrics - what the service exists to do
	extractionsTotal   *prometheus.CounterVec
	extractionDuration *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter

	// Stream Metrics - fan-out and SSE delivery
	streamsStarted   prometheus.Counter
	streamsRejected  prometheus.Counter
	streamsActive    prometheus.Gauge
	streamEvents     *prometheus.CounterVec
	keepalivesTotal  prometheus.Counter
	dispatchDuration prometheus.Histogram

	// Store Metrics - cache/history persistence
	storeWriteLatency prometheus.Histogram
	storeReadLatency  prometheus.Histogram
	storeErrors       prometheus.Counter

	// Integrity Metrics - snapshots, regressions, reliability
	snapshotsCreated    prometheus.Counter
	snapshotsDuplicate  prometheus.Counter
	integrityFailures   prometheus.Counter
	regressionsDetected *prometheus.CounterVec
	prsComputations     prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scout",
		subsystem:        "aggregator",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Extraction Metrics
	m.extractionsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "extractions_total",
			Help:      "Total number of extraction tasks by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	m.extractionDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "extraction_duration_seconds",
			Help:      "Wall-clock duration of extraction tasks by source",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300},
		},
		[]string{"source"},
	)

	m.cacheHits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_hits_total",
		Help:      "Total number of extraction requests served from the cache",
	})

	m.cacheMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cache_misses_total",
		Help:      "Total number of extraction requests that went to the agent",
	})

	// Stream Metrics
	m.streamsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "streams_started_total",
		Help:      "Total number of streaming sessions admitted",
	})

	m.streamsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "streams_rejected_total",
		Help:      "Total number of streaming sessions rejected by the admission gate",
	})

	m.streamsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "streams_active",
		Help:      "Current number of open streaming sessions",
	})

	m.streamEvents = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "stream_events_total",
			Help:      "Total number of stream events emitted by kind",
		},
		[]string{"kind"},
	)

	m.keepalivesTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "keepalives_total",
		Help:      "Total number of keepalive comments written to idle streams",
	})

	m.dispatchDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dispatch_duration_seconds",
		Help:      "Time from dispatch start to all tasks done",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 300, 600},
	})

	// Store Metrics
	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_write_latency_milliseconds",
		Help:      "Latency of store writes in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_read_latency_milliseconds",
		Help:      "Latency of store reads in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Total number of store operation failures",
	})

	// Integrity Metrics
	m.snapshotsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_created_total",
		Help:      "Total number of snapshots created",
	})

	m.snapshotsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "snapshots_duplicate_total",
		Help:      "Total number of snapshot writes rejected for duplicate content hash",
	})

	m.integrityFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "integrity_failures_total",
		Help:      "Total number of snapshot hash verification failures",
	})

	m.regressionsDetected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "regressions_detected_total",
			Help:      "Total number of regression events by severity",
		},
		[]string{"severity"},
	)

	m.prsComputations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prs_computations_total",
		Help:      "Total number of reliability score computations",
	})

	// HTTP Performance Metrics
	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	// Enhanced Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total errors by endpoint and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordExtraction records the outcome of one extraction task.
func RecordExtraction(source, outcome string) {
	globalManager.extractionsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordExtractionDuration records extraction wall-clock time in seconds.
func RecordExtractionDuration(source string, seconds float64) {
	globalManager.extractionDuration.WithLabelValues(source).Observe(seconds)
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordStreamStarted increments the admitted streams counter.
func RecordStreamStarted() {
	globalManager.streamsStarted.Inc()
}

// RecordStreamRejected increments the rejected streams counter.
func RecordStreamRejected() {
	globalManager.streamsRejected.Inc()
}

// UpdateActiveStreams sets the open streaming session gauge.
func UpdateActiveStreams(count int64) {
	globalManager.streamsActive.Set(float64(count))
}

// RecordStreamEvent increments the emitted events counter for a kind.
func RecordStreamEvent(kind string) {
	globalManager.streamEvents.WithLabelValues(kind).Inc()
}

// RecordKeepalive increments the keepalive counter.
func RecordKeepalive() {
	globalManager.keepalivesTotal.Inc()
}

// RecordDispatchDuration records the time a full dispatch took in seconds.
func RecordDispatchDuration(seconds float64) {
	globalManager.dispatchDuration.Observe(seconds)
}

// RecordStoreWriteLatency records store write latency in milliseconds.
func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

// RecordStoreReadLatency records store read latency in milliseconds.
func RecordStoreReadLatency(latencyMs float64) {
	globalManager.storeReadLatency.Observe(latencyMs)
}

// RecordStoreError increments the store error counter.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// RecordSnapshotCreated increments the snapshots created counter.
func RecordSnapshotCreated() {
	globalManager.snapshotsCreated.Inc()
}

// RecordSnapshotDuplicate increments the duplicate-hash rejection counter.
func RecordSnapshotDuplicate() {
	globalManager.snapshotsDuplicate.Inc()
}

// RecordIntegrityFailure increments the hash verification failure counter.
func RecordIntegrityFailure() {
	globalManager.integrityFailures.Inc()
}

// RecordRegression increments the regression counter for a severity.
func RecordRegression(severity string) {
	globalManager.regressionsDetected.WithLabelValues(severity).Inc()
}

// RecordPRSComputation increments the reliability score computation counter.
func RecordPRSComputation() {
	globalManager.prsComputations.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error by endpoint and type.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by the service.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

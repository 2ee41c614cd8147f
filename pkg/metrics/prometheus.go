// Package metrics provides Prometheus metrics for the SurgiTrack service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exposed by the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	scoreBuckets   []float64
	constLabels    prometheus.Labels
	registry       prometheus.Registerer

	// Attempt metrics
	attemptsRecorded   prometheus.Counter
	attemptsProficient prometheus.Counter
	attemptDuplicates  prometheus.Counter
	attemptScore       prometheus.Histogram
	attemptErrors      *prometheus.CounterVec
	videosUploaded     prometheus.Counter
	videoBytes         prometheus.Counter

	// Auth metrics
	authEvents *prometheus.CounterVec

	// Leaderboard metrics
	leaderboardEntries       prometheus.Gauge
	leaderboardUpdates       prometheus.Counter
	leaderboardUpdateLatency prometheus.Histogram
	leaderboardQueryLatency  prometheus.Histogram

	// Store metrics
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors *prometheus.CounterVec

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // metrics must exist before any package records
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "surgitrack",
		subsystem:      "api",
		latencyBuckets: prometheus.DefBuckets,
		scoreBuckets:   prometheus.LinearBuckets(0, 10, 11),
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.attemptsRecorded = m.counter("attempts_recorded_total", "Total number of attempts persisted")
	m.attemptsProficient = m.counter("attempts_proficient_total", "Total number of attempts that met their standard")
	m.attemptDuplicates = m.counter("attempt_duplicates_total", "Attempt submissions rejected by idempotency key")
	m.attemptScore = m.histogram("attempt_score", "Distribution of attempt scores", m.scoreBuckets)
	m.attemptErrors = m.counterVec("attempt_errors_total", "Logged error observations by severity", "severity")
	m.videosUploaded = m.counter("videos_uploaded_total", "Total number of attempt videos stored")
	m.videoBytes = m.counter("video_bytes_total", "Total bytes of attempt video stored")

	m.authEvents = m.counterVec("auth_events_total", "Authentication events by kind and outcome", "event", "outcome")

	m.leaderboardEntries = m.gauge("leaderboard_entries", "Number of (user, task) pairs on the leaderboard")
	m.leaderboardUpdates = m.counter("leaderboard_updates_total", "Leaderboard improvements applied")
	m.leaderboardUpdateLatency = m.histogram("leaderboard_update_latency_milliseconds", "Leaderboard update latency", m.latencyBuckets)
	m.leaderboardQueryLatency = m.histogram("leaderboard_query_latency_milliseconds", "Leaderboard read latency", m.latencyBuckets)

	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds", "Relational store latency by operation", m.latencyBuckets, "op")
	m.storeErrors = m.counterVec("store_errors_total", "Relational store failures by operation", "op")

	m.queueSize = m.gauge("queue_size", "Current number of queued attempt events")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the attempt event queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Attempt events enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Attempt events dequeued")
	m.queueEnqueueErrors = m.counterVec("queue_enqueue_errors_total", "Rejected enqueues by reason", "reason")

	m.workerCount = m.gauge("worker_count", "Number of leaderboard workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to apply one event", m.latencyBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Events the workers failed to apply")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration", m.latencyBuckets, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause", m.latencyBuckets)
}

// Attempt metrics.

// RecordAttempt records a persisted attempt with its score, verdict and severities.
func RecordAttempt(score int, proficient bool, minor, major, critical int) {
	globalManager.attemptsRecorded.Inc()
	if proficient {
		globalManager.attemptsProficient.Inc()
	}
	globalManager.attemptScore.Observe(float64(score))
	globalManager.attemptErrors.WithLabelValues("minor").Add(float64(minor))
	globalManager.attemptErrors.WithLabelValues("major").Add(float64(major))
	globalManager.attemptErrors.WithLabelValues("critical").Add(float64(critical))
}

// RecordAttemptDuplicate counts a submission rejected by its idempotency key.
func RecordAttemptDuplicate() {
	globalManager.attemptDuplicates.Inc()
}

// RecordVideoUpload counts a stored video and its size.
func RecordVideoUpload(bytes int64) {
	globalManager.videosUploaded.Inc()
	globalManager.videoBytes.Add(float64(bytes))
}

// RecordAuthEvent counts register/login outcomes.
func RecordAuthEvent(event, outcome string) {
	globalManager.authEvents.WithLabelValues(event, outcome).Inc()
}

// Leaderboard metrics.

// UpdateLeaderboardEntries sets the number of ranked (user, task) pairs.
func UpdateLeaderboardEntries(count int) {
	globalManager.leaderboardEntries.Set(float64(count))
}

// RecordLeaderboardUpdate counts an applied improvement.
func RecordLeaderboardUpdate() {
	globalManager.leaderboardUpdates.Inc()
}

// RecordLeaderboardUpdateLatency records the time to apply one update.
func RecordLeaderboardUpdateLatency(latencyMs float64) {
	globalManager.leaderboardUpdateLatency.Observe(latencyMs)
}

// RecordLeaderboardQueryLatency records the time to serve one read.
func RecordLeaderboardQueryLatency(latencyMs float64) {
	globalManager.leaderboardQueryLatency.Observe(latencyMs)
}

// Store metrics.

// RecordStoreQuery records the latency of a store operation and counts failures.
func RecordStoreQuery(op string, latencyMs float64, err error) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(op).Inc()
	}
}

// Queue metrics.

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueSize sets the current queue length and utilization.
func UpdateQueueSize(size, capacity int) {
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted event.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a delivered event.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected event.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// Worker metrics.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records the time to apply one event.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts an event the worker failed to apply.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP metrics.

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records the duration of a served request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Error metrics.

// RecordErrorByComponent counts an error raised inside a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint counts an HTTP error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry served at /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

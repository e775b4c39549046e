package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Generation metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration *prometheus.HistogramVec
	MediaItemsTotal    *prometheus.CounterVec

	// Operation polling metrics
	PollsTotal       *prometheus.CounterVec
	PollAttempts     *prometheus.HistogramVec
	OperationsActive prometheus.Gauge

	// Storage metrics
	StorageTransfersTotal *prometheus.CounterVec
	StorageBytesTotal     *prometheus.CounterVec

	// Task metrics
	TasksTotal   *prometheus.CounterVec
	TasksRunning prometheus.Gauge

	// Media tool metrics
	MediaOpsTotal    *prometheus.CounterVec
	MediaOpDuration  *prometheus.HistogramVec
}

// New creates a new Metrics instance with all metrics registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "genmedia"
	}

	return &Metrics{
		// Generation metrics
		GenerationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "requests_total",
				Help:      "Total number of generation requests",
			},
			[]string{"kind", "provider", "status"},
		),
		GenerationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "request_duration_seconds",
				Help:      "Generation request duration in seconds",
				Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind", "provider"},
		),
		MediaItemsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "generation",
				Name:      "media_items_total",
				Help:      "Total number of media items produced",
			},
			[]string{"kind", "provider"},
		),

		// Operation polling metrics
		PollsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "polls_total",
				Help:      "Total number of long-running operation polls",
			},
			[]string{"provider", "result"}, // result: pending, done, error
		),
		PollAttempts: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "poll_attempts",
				Help:      "Number of polls until an operation completed",
				Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 55},
			},
			[]string{"provider"},
		),
		OperationsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "operation",
				Name:      "active",
				Help:      "Current number of long-running operations being polled",
			},
		),

		// Storage metrics
		StorageTransfersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "transfers_total",
				Help:      "Total number of storage transfers",
			},
			[]string{"scheme", "direction", "status"}, // direction: upload, download
		),
		StorageBytesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "storage",
				Name:      "bytes_total",
				Help:      "Total number of bytes transferred",
			},
			[]string{"scheme", "direction"},
		),

		// Task metrics
		TasksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "total",
				Help:      "Total number of background tasks by terminal status",
			},
			[]string{"type", "status"},
		),
		TasksRunning: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "task",
				Name:      "running",
				Help:      "Current number of running background tasks",
			},
		),

		// Media tool metrics
		MediaOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "avtool",
				Name:      "operations_total",
				Help:      "Total number of media tool operations",
			},
			[]string{"operation", "status"},
		),
		MediaOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "avtool",
				Name:      "operation_duration_seconds",
				Help:      "Media tool operation duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

// --- Convenience methods ---

// RecordGeneration records a generation request.
func (m *Metrics) RecordGeneration(kind, provider, status string, duration time.Duration) {
	m.GenerationsTotal.WithLabelValues(kind, provider, status).Inc()
	m.GenerationDuration.WithLabelValues(kind, provider).Observe(duration.Seconds())
}

// RecordMediaItems records the number of media items a request produced.
func (m *Metrics) RecordMediaItems(kind, provider string, count int) {
	if count > 0 {
		m.MediaItemsTotal.WithLabelValues(kind, provider).Add(float64(count))
	}
}

// RecordPoll records a single poll of a long-running operation.
func (m *Metrics) RecordPoll(provider, result string) {
	m.PollsTotal.WithLabelValues(provider, result).Inc()
}

// RecordOperationDone records how many polls an operation took to complete.
func (m *Metrics) RecordOperationDone(provider string, attempts int) {
	m.PollAttempts.WithLabelValues(provider).Observe(float64(attempts))
}

// RecordStorageTransfer records a storage upload or download.
func (m *Metrics) RecordStorageTransfer(scheme, direction, status string, bytes int) {
	m.StorageTransfersTotal.WithLabelValues(scheme, direction, status).Inc()
	if bytes > 0 {
		m.StorageBytesTotal.WithLabelValues(scheme, direction).Add(float64(bytes))
	}
}

// RecordTaskFinished records a task reaching a terminal status.
func (m *Metrics) RecordTaskFinished(taskType, status string) {
	m.TasksTotal.WithLabelValues(taskType, status).Inc()
}

// RecordMediaOp records a media tool operation.
func (m *Metrics) RecordMediaOp(operation, status string, duration time.Duration) {
	m.MediaOpsTotal.WithLabelValues(operation, status).Inc()
	m.MediaOpDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

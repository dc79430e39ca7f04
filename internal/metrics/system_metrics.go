package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SimdDispatchCount counts kernel selections by implementation
	SimdDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_simd_dispatch_count_total",
			Help: "Count of SIMD dispatch selections by implementation",
		},
		[]string{"impl"},
	)

	// LogEntriesTotal counts log entries by level
	LogEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_log_entries_total",
			Help: "Total number of log entries by level",
		},
		[]string{"level"},
	)

	// LogErrorsTotal counts error-level log entries specifically
	LogErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "genovec_log_errors_total",
			Help: "Total number of error log entries",
		},
	)
)

// =============================================================================
// GPU Metrics
// =============================================================================

var (
	// GpuDispatchesTotal counts kernel dispatches by adapter backend
	GpuDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_gpu_dispatches_total",
			Help: "Total number of similarity kernel dispatches",
		},
		[]string{"backend"},
	)

	// GpuDispatchDurationSeconds measures submit-to-readback latency
	GpuDispatchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genovec_gpu_dispatch_duration_seconds",
			Help:    "Latency of a similarity kernel dispatch including readback",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"backend"},
	)

	// GpuErrorsTotal counts engine failures by kind
	GpuErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_gpu_errors_total",
			Help: "Total number of GPU engine errors",
		},
		[]string{"kind"}, // "no_adapter", "device", "shader", "buffer"
	)

	// GpuBufferBytes tracks bytes allocated on the device for the last dispatch
	GpuBufferBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "genovec_gpu_buffer_bytes",
			Help: "Bytes of device storage allocated by the most recent dispatch",
		},
	)
)

var (
	// BufferPoolOperations counts staging buffer pool traffic
	BufferPoolOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genovec_buffer_pool_operations_total",
			Help: "Staging buffer pool operations",
		},
		[]string{"op"}, // "get", "put", "grow"
	)
)

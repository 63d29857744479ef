package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the service registers. A single
// instance is created at bootstrap and shared; tests can pass a fresh
// registry to keep themselves hermetic.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTPRequestsTotal counts handled HTTP requests, partitioned by method,
	// handler name, and status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPDurationSeconds records request latency per method and handler.
	HTTPDurationSeconds *prometheus.HistogramVec

	// SearchDurationSeconds records end-to-end search latency, partitioned by
	// whether an answer was generated.
	SearchDurationSeconds *prometheus.HistogramVec

	// DocumentProcessingSeconds records how long the worker took per document.
	DocumentProcessingSeconds prometheus.Histogram

	// EmbeddingsWrittenTotal counts embeddings persisted, by content type.
	EmbeddingsWrittenTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multirag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled, partitioned by method, handler, and status code.",
		}, []string{"method", "handler", "code"}),

		HTTPDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multirag",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "handler"}),

		SearchDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "multirag",
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "End-to-end search latency, partitioned by whether an answer was generated.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"answered"}),

		DocumentProcessingSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "multirag",
			Subsystem: "ingest",
			Name:      "document_processing_seconds",
			Help:      "Wall-clock time spent processing a single document.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),

		EmbeddingsWrittenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "multirag",
			Subsystem: "ingest",
			Name:      "embeddings_written_total",
			Help:      "Total number of embeddings persisted, partitioned by content type.",
		}, []string{"content_type"}),
	}
}

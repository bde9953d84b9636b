package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ChunksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_chunks_processed_total",
			Help: "Total number of chunks processed successfully",
		},
		[]string{"worker", "brand"},
	)
	ChunksFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_chunks_failed_total",
			Help: "Total number of chunks routed to the failure queue by reason",
		},
		[]string{"worker", "brand", "reason"},
	)
	ProcessingTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_processing_time_seconds",
			Help:    "End-to-end chunk processing time in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"worker", "brand"},
	)
	PreprocessingTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_preprocessing_time_seconds",
			Help:    "Mention cleanup and deduplication time in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"worker", "brand"},
	)
	EmbeddingTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_embedding_time_seconds",
			Help:    "Embedding generation time in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"worker", "brand"},
	)
	LLMLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_llm_latency_seconds",
			Help:    "LLM operation latency in seconds by operation",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"worker", "brand", "operation"},
	)
	IOTimeSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_io_time_seconds",
			Help:    "Store I/O time in seconds by op (fetch, push, failure)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"worker", "brand", "op"},
	)
	WaitingSeconds = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_waiting_seconds",
			Help: "Seconds the worker has currently been idle waiting for work",
		},
		[]string{"worker"},
	)
)

var registerOnce sync.Once

// InitMetrics registers all worker collectors on the default registry.
// Idempotent.
func InitMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ChunksProcessedTotal)
		prometheus.MustRegister(ChunksFailedTotal)
		prometheus.MustRegister(ProcessingTimeSeconds)
		prometheus.MustRegister(PreprocessingTimeSeconds)
		prometheus.MustRegister(EmbeddingTimeSeconds)
		prometheus.MustRegister(LLMLatencySeconds)
		prometheus.MustRegister(IOTimeSeconds)
		prometheus.MustRegister(WaitingSeconds)
	})
}

// Package domain defines the worker's core types and ports.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrSchemaInvalid   = errors.New("schema invalid")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrNotConfigured   = errors.New("not configured")
	ErrInternal        = errors.New("internal error")
)

// Mention is a single piece of user-generated text referring to a brand.
// Mentions arrive inside a chunk and are immutable once decoded.
type Mention struct {
	ID        string             `json:"id" validate:"required"`
	Source    string             `json:"source" validate:"required"`
	Text      string             `json:"text" validate:"required"`
	CreatedAt time.Time          `json:"created_at" validate:"required"`
	Sentiment map[string]float64 `json:"sentiment,omitempty"`
	Metadata  map[string]any     `json:"metadata,omitempty"`
}

// ChunkMeta carries optional chunk position info from the producer.
type ChunkMeta struct {
	ChunkIndex  *int `json:"chunkIndex,omitempty"`
	TotalChunks *int `json:"totalChunks,omitempty"`
}

// Chunk is one unit of work: a bounded batch of brand mentions delivered as a
// single queue item. Field names are camelCase on the wire.
// Invariants: Brand non-empty; ChunkID unique within a logical job; Mentions
// may be empty (the processor short-circuits).
type Chunk struct {
	Brand     string     `json:"brand" validate:"required"`
	ChunkID   string     `json:"chunkId" validate:"required"`
	CreatedAt time.Time  `json:"createdAt" validate:"required"`
	Mentions  []Mention  `json:"mentions" validate:"dive"`
	Meta      *ChunkMeta `json:"meta,omitempty"`
}

// SentimentScores holds the three-way sentiment distribution for a cluster.
// Each value is in [0,1]; when parsed from a well-formed provider response the
// values sum to ~1. Never renormalized after parsing.
type SentimentScores struct {
	Positive float64 `json:"positive"`
	Negative float64 `json:"negative"`
	Neutral  float64 `json:"neutral"`
}

// DefaultSentiment is returned when a provider response cannot be parsed.
func DefaultSentiment() SentimentScores {
	return SentimentScores{Positive: 0.33, Negative: 0.33, Neutral: 0.34}
}

// ClusterResult is the per-cluster analysis output.
// Invariant: Count >= len(Examples).
type ClusterResult struct {
	ClusterID int             `json:"cluster_id"`
	Count     int             `json:"count"`
	Examples  []string        `json:"examples"`
	Summary   string          `json:"summary"`
	Spike     bool            `json:"spike"`
	Sentiment SentimentScores `json:"sentiment"`
}

// ChunkMetrics collects per-stage durations in milliseconds. It is mutated
// while a single chunk is processed and frozen afterwards.
//
// TotalTaskTimeMS = processing wall time + IOTimeMS. Push time is counted
// twice on purpose: once into IOTimeMS and once into the push histogram.
type ChunkMetrics struct {
	PreprocessingTimeMS  float64 `json:"preprocessing_time_ms"`
	EmbeddingTimeMS      float64 `json:"embedding_time_ms"`
	ClusteringTimeMS     float64 `json:"clustering_time_ms"`
	LLMTimeMS            float64 `json:"llm_time_ms"`
	SpikeDetectionTimeMS float64 `json:"spike_detection_time_ms"`
	IOTimeMS             float64 `json:"io_time_ms"`
	TotalTaskTimeMS      float64 `json:"total_task_time_ms"`
}

// ChunkResult is the internal result of processing one chunk. Produced once
// per chunk, never mutated after serialization.
type ChunkResult struct {
	ChunkID   string          `json:"chunk_id"`
	Brand     string          `json:"brand"`
	Timestamp int64           `json:"timestamp"`
	Clusters  []ClusterResult `json:"clusters"`
	Metrics   ChunkMetrics    `json:"metrics"`
}

// FailureRecord is appended to the per-brand dead-letter queue for payloads
// that could not be processed. Payload carries the original raw input text.
type FailureRecord struct {
	WorkerID string `json:"worker_id"`
	Brand    string `json:"brand"`
	ChunkID  string `json:"chunk_id"`
	Reason   string `json:"reason"`
	Payload  string `json:"payload"`
}

// Labels identifies the chunk currently being worked on. Threaded explicitly
// through embedding and LLM calls so telemetry carries the right brand and
// chunk id even across nested invocations.
type Labels struct {
	Brand   string
	ChunkID string
}

// EmbeddingAdapter turns N texts into an N x D float matrix. Rows correspond
// 1:1 to input texts in order; D is constant per adapter instance. Callers
// must short-circuit before calling with empty input.
type EmbeddingAdapter interface {
	Embed(ctx context.Context, texts []string, labels Labels) ([][]float64, error)
}

// LLMAdapter exposes the two analysis operations backed by a generative model.
type LLMAdapter interface {
	Summarize(ctx context.Context, texts []string, labels Labels) (string, error)
	Sentiment(ctx context.Context, texts []string, labels Labels) (SentimentScores, error)
}

// ClusterGroup labels a subset of mention indices (positions in the deduped
// mention list) with an integer cluster id.
type ClusterGroup struct {
	ClusterID int
	Indices   []int
}

// ClusteringOutput is the clusterer's contract: a partition (or partial cover)
// of mention indices into integer-labelled groupings plus wall-clock duration.
type ClusteringOutput struct {
	Clusters   []ClusterGroup
	DurationMS float64
}

// Clusterer groups semantically similar mentions given their embeddings.
type Clusterer interface {
	Cluster(ctx context.Context, embeddings [][]float64, labels Labels) (ClusteringOutput, error)
}

// SpikeResult is the outcome of classifying a cluster's current count against
// its rolling history.
type SpikeResult struct {
	IsSpike        bool
	HistoricalMean float64
	CurrentCount   int
}

// SpikeDetector classifies a (brand, cluster) count observation as a spike.
type SpikeDetector interface {
	Detect(ctx context.Context, brand string, clusterID, currentCount int) (SpikeResult, error)
}

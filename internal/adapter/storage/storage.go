// Package storage publishes chunk results and failure records to the shared
// store in the orchestrator's wire format.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/store/redisstore"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
)

const maxTopics = 10

// ResultStorage serializes results and failures onto their per-brand lists.
type ResultStorage struct {
	store    *redisstore.Client
	cfg      config.Config
	workerID string
}

// New builds result storage over a store client.
func New(store *redisstore.Client, cfg config.Config) *ResultStorage {
	return &ResultStorage{store: store, cfg: cfg, workerID: cfg.WorkerID}
}

// orchestratorCluster is the external per-cluster shape. Field names are
// camelCase on the wire.
type orchestratorCluster struct {
	ID             string   `json:"id"`
	Label          string   `json:"label"`
	Mentions       []string `json:"mentions"`
	SentimentScore float64  `json:"sentimentScore"`
	Spike          bool     `json:"spike"`
	MentionCount   int      `json:"mentionCount"`
}

type orchestratorSentiment struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
	Score    float64 `json:"score"`
}

type orchestratorMeta struct {
	Metrics      domain.ChunkMetrics `json:"metrics"`
	MentionCount int                 `json:"mentionCount"`
}

type orchestratorPayload struct {
	ChunkID       string                `json:"chunkId"`
	Brand         string                `json:"brand"`
	ProcessedAt   string                `json:"processedAt"`
	Sentiment     orchestratorSentiment `json:"sentiment"`
	Clusters      []orchestratorCluster `json:"clusters"`
	Topics        []string              `json:"topics"`
	Summary       string                `json:"summary"`
	SpikeDetected bool                  `json:"spikeDetected"`
	Meta          orchestratorMeta      `json:"meta"`
}

// PushResult converts a ChunkResult to the orchestrator payload and appends it
// to "<result_prefix>:<brand>:chunks". Returns the push duration in
// milliseconds; the caller folds it into the chunk's I/O bucket.
func (s *ResultStorage) PushResult(ctx context.Context, brand string, result domain.ChunkResult) (float64, error) {
	payload := s.buildPayload(brand, result)
	buf, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("op=storage.PushResult: %w", err)
	}

	key := fmt.Sprintf("%s:%s:chunks", s.cfg.RedisResultPrefix, brand)
	sw := retryx.NewStopwatch()
	if err := s.store.RPush(ctx, key, string(buf)); err != nil {
		return sw.ElapsedMS(), fmt.Errorf("op=storage.PushResult: %w", err)
	}
	pushMS := sw.ElapsedMS()
	observability.IOTimeSeconds.WithLabelValues(s.workerID, brand, "push").Observe(pushMS / 1000)
	slog.Info("pushed result",
		slog.String("worker_id", s.workerID),
		slog.String("brand", brand),
		slog.String("chunk_id", result.ChunkID),
		slog.Int("clusters", len(result.Clusters)),
		slog.Float64("push_time_ms", pushMS))
	return pushMS, nil
}

// RecordFailure appends a dead-letter record to "<failed_prefix>:<brand>" and
// bumps the failure counter under the given reason label.
func (s *ResultStorage) RecordFailure(ctx context.Context, record domain.FailureRecord, reason string) error {
	buf, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("op=storage.RecordFailure: %w", err)
	}
	key := fmt.Sprintf("%s:%s", s.cfg.RedisFailedPrefix, record.Brand)
	sw := retryx.NewStopwatch()
	pushErr := s.store.RecordFailure(ctx, key, string(buf))
	observability.IOTimeSeconds.WithLabelValues(s.workerID, record.Brand, "failure").Observe(sw.ElapsedMS() / 1000)
	observability.ChunksFailedTotal.WithLabelValues(s.workerID, record.Brand, reason).Inc()
	slog.Warn("recorded failure",
		slog.String("worker_id", s.workerID),
		slog.String("brand", record.Brand),
		slog.String("chunk_id", record.ChunkID),
		slog.String("reason", reason),
		slog.String("detail", record.Reason))
	if pushErr != nil {
		return fmt.Errorf("op=storage.RecordFailure: %w", pushErr)
	}
	return nil
}

func (s *ResultStorage) buildPayload(brand string, result domain.ChunkResult) orchestratorPayload {
	clusters := make([]orchestratorCluster, 0, len(result.Clusters))
	topics := make([]string, 0, len(result.Clusters))
	topicSeen := make(map[string]struct{})
	summaries := make([]string, 0, len(result.Clusters))

	var (
		sumPos, sumNeu, sumNeg float64
		withSentiment          int
		spikeDetected          bool
		mentionCount           int
	)
	for _, c := range result.Clusters {
		normalized := normalizeSummary(c.Summary)
		label := normalized
		if label == "" && len(c.Examples) > 0 {
			label = c.Examples[0]
		}
		if label == "" {
			label = "Cluster " + strconv.Itoa(c.ClusterID)
		}
		clusters = append(clusters, orchestratorCluster{
			ID:             strconv.Itoa(c.ClusterID),
			Label:          label,
			Mentions:       c.Examples,
			SentimentScore: c.Sentiment.Positive - c.Sentiment.Negative,
			Spike:          c.Spike,
			MentionCount:   c.Count,
		})

		topic := normalized
		if topic == "" && len(c.Examples) > 0 {
			topic = c.Examples[0]
		}
		if t := strings.TrimSpace(topic); t != "" {
			if _, ok := topicSeen[t]; !ok && len(topics) < maxTopics {
				topicSeen[t] = struct{}{}
				topics = append(topics, t)
			}
		}
		if normalized != "" {
			summaries = append(summaries, normalized)
		}

		sumPos += c.Sentiment.Positive
		sumNeu += c.Sentiment.Neutral
		sumNeg += c.Sentiment.Negative
		withSentiment++
		spikeDetected = spikeDetected || c.Spike
		mentionCount += c.Count
	}

	var sentiment orchestratorSentiment
	if withSentiment > 0 {
		n := float64(withSentiment)
		sentiment = orchestratorSentiment{
			Positive: sumPos / n,
			Neutral:  sumNeu / n,
			Negative: sumNeg / n,
		}
		sentiment.Score = sentiment.Positive - sentiment.Negative
	}

	return orchestratorPayload{
		ChunkID:       result.ChunkID,
		Brand:         brand,
		ProcessedAt:   time.Now().UTC().Format(time.RFC3339),
		Sentiment:     sentiment,
		Clusters:      clusters,
		Topics:        topics,
		Summary:       strings.Join(summaries, " "),
		SpikeDetected: spikeDetected,
		Meta: orchestratorMeta{
			Metrics:      result.Metrics,
			MentionCount: mentionCount,
		},
	}
}

// normalizeSummary trims a cluster summary and rejects text that looks like a
// raw JSON sentiment blob leaked out of the model.
func normalizeSummary(summary string) string {
	s := strings.TrimSpace(summary)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") &&
		strings.Contains(s, "positive") && strings.Contains(s, "negative") {
		return ""
	}
	return s
}

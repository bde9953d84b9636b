package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/embedding"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/llm"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/queue"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/storage"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/store/redisstore"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/internal/usecase"
)

// pairClusterer puts every mention in its own cluster so tests control the
// cluster layout without depending on embedding geometry.
type pairClusterer struct{}

func (pairClusterer) Cluster(_ context.Context, embeddings [][]float64, _ domain.Labels) (domain.ClusteringOutput, error) {
	groups := make([]domain.ClusterGroup, len(embeddings))
	for i := range embeddings {
		groups[i] = domain.ClusterGroup{ClusterID: i, Indices: []int{i}}
	}
	return domain.ClusteringOutput{Clusters: groups, DurationMS: 1}, nil
}

func testService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.Config{
		WorkerID:                  "worker-test",
		MaxRetries:                1,
		RetryBackoffBase:          0.001,
		EmbeddingsProvider:        "local",
		LLMProvider:               "mock",
		BLPopTimeoutSec:           1,
		HeartbeatIntervalSec:      1,
		MetricsWaitLogIntervalSec: 30,
		RedisQueuePrefix:          "q",
		RedisResultPrefix:         "r",
		RedisFailedPrefix:         "f",
		RedisSpikePrefix:          "s",
		SpikeHistoryTTLSec:        3600,
		LLMSummaryMaxTokens:       128,
		LLMTimeoutSec:             5,
		PreprocessingExamples:     3,
	}
	store := redisstore.NewWithClient(rdb, cfg)

	llmAdapter := llm.NewAdapterWith(llm.Mock{}, nil, cfg.LLMSummaryMaxTokens, 5*time.Second, cfg.WorkerID)
	processor := usecase.NewProcessor(
		embedding.ForProvider(cfg),
		llmAdapter,
		pairClusterer{},
		usecase.NewStatDetector(store, cfg.WorkerID),
		cfg,
	)
	svc := NewService(cfg, store, queue.NewConsumer(store, cfg), processor, storage.New(store, cfg))
	t.Cleanup(svc.Stop)
	return svc, mr
}

func chunkJSON(t *testing.T, chunk domain.Chunk) string {
	t.Helper()
	buf, err := json.Marshal(chunk)
	require.NoError(t, err)
	return string(buf)
}

func singleListItem(t *testing.T, mr *miniredis.Miniredis, key string) map[string]any {
	t.Helper()
	vals, err := mr.List(key)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(vals[0]), &out))
	return out
}

func TestHandlePayload(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path pushes an orchestrator result", func(t *testing.T) {
		svc, mr := testService(t)
		chunk := domain.Chunk{
			Brand:     "acme",
			ChunkID:   "c1",
			CreatedAt: time.Now(),
			Mentions: []domain.Mention{
				{ID: "m1", Source: "twitter", Text: "Great Product!", CreatedAt: time.Now()},
				{ID: "m2", Source: "twitter", Text: "great product!", CreatedAt: time.Now()},
				{ID: "m3", Source: "reddit", Text: "terrible support, bad experience", CreatedAt: time.Now()},
			},
		}
		svc.HandlePayload(ctx, "q:acme:chunks", chunkJSON(t, chunk), 3)

		payload := singleListItem(t, mr, "r:acme:chunks")
		assert.Equal(t, "c1", payload["chunkId"])
		assert.Equal(t, "acme", payload["brand"])
		assert.Equal(t, false, payload["spikeDetected"])
		assert.NotEmpty(t, payload["summary"])
		assert.Len(t, payload["clusters"].([]any), 2)
		meta := payload["meta"].(map[string]any)
		assert.Equal(t, float64(2), meta["mentionCount"])
		assert.False(t, mr.Exists("f:acme"))
	})

	t.Run("invalid json dead-letters under json_decode", func(t *testing.T) {
		svc, mr := testService(t)
		svc.HandlePayload(ctx, "q:acme:chunks", "{not json", 0)

		record := singleListItem(t, mr, "f:acme")
		assert.Equal(t, "Invalid JSON", record["reason"])
		assert.Equal(t, "unknown", record["chunk_id"])
		assert.Equal(t, "acme", record["brand"])
		assert.Equal(t, "{not json", record["payload"])
		assert.False(t, mr.Exists("r:acme:chunks"))
	})

	t.Run("schema violation dead-letters under validation", func(t *testing.T) {
		svc, mr := testService(t)
		svc.HandlePayload(ctx, "q:acme:chunks", `{"brand":"acme","chunkId":"c7"}`, 0)

		record := singleListItem(t, mr, "f:acme")
		assert.Equal(t, "Validation failed", record["reason"])
		assert.Equal(t, "c7", record["chunk_id"])
	})

	t.Run("type mismatch recovers the raw chunk id", func(t *testing.T) {
		svc, mr := testService(t)
		svc.HandlePayload(ctx, "q:acme:chunks", `{"brand":"acme","chunkId":"c8","mentions":"nope"}`, 0)

		record := singleListItem(t, mr, "f:acme")
		assert.Equal(t, "Validation failed", record["reason"])
		assert.Equal(t, "c8", record["chunk_id"])
	})

	t.Run("brand hint fills a missing brand", func(t *testing.T) {
		svc, mr := testService(t)
		payload := `{"brand":"","chunkId":"c9","createdAt":"2026-08-24T10:00:00Z","mentions":[]}`
		svc.HandlePayload(ctx, "q:globex:chunks", payload, 0)

		// Empty brand fails schema validation; the hint names the queue.
		record := singleListItem(t, mr, "f:globex")
		assert.Equal(t, "globex", record["brand"])
	})

	t.Run("empty mentions produce an empty result", func(t *testing.T) {
		svc, mr := testService(t)
		chunk := domain.Chunk{Brand: "acme", ChunkID: "c10", CreatedAt: time.Now()}
		svc.HandlePayload(ctx, "q:acme:chunks", chunkJSON(t, chunk), 0)

		payload := singleListItem(t, mr, "r:acme:chunks")
		assert.Empty(t, payload["clusters"])
		assert.Equal(t, "", payload["summary"])
		assert.Equal(t, false, payload["spikeDetected"])
	})
}

func TestServiceLifecycle(t *testing.T) {
	t.Run("processes a queued chunk end to end", func(t *testing.T) {
		svc, mr := testService(t)
		chunk := domain.Chunk{
			Brand:     "acme",
			ChunkID:   "c1",
			CreatedAt: time.Now(),
			Mentions: []domain.Mention{
				{ID: "m1", Source: "twitter", Text: "love the new release", CreatedAt: time.Now()},
			},
		}
		mr.Lpush("q:acme:chunks", chunkJSON(t, chunk))

		require.NoError(t, svc.Start(context.Background()))
		assert.True(t, svc.Ready())

		require.Eventually(t, func() bool {
			return mr.Exists("r:acme:chunks")
		}, 5*time.Second, 20*time.Millisecond)

		svc.Stop()
		assert.False(t, svc.Ready())
	})

	t.Run("heartbeat key is set with a ttl", func(t *testing.T) {
		svc, mr := testService(t)
		require.NoError(t, svc.Start(context.Background()))

		require.Eventually(t, func() bool {
			return mr.Exists("workers:heartbeat:worker-test")
		}, 2*time.Second, 20*time.Millisecond)
		assert.Greater(t, mr.TTL("workers:heartbeat:worker-test"), time.Duration(0))
		svc.Stop()
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		svc, _ := testService(t)
		require.NoError(t, svc.Start(context.Background()))
		svc.Stop()
		svc.Stop()
	})
}

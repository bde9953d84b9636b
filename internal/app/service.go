// Package app assembles the worker service: the heartbeat and processing
// loops, payload handling, and the health/metrics HTTP surface.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/queue"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/storage"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/store/redisstore"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/internal/usecase"
)

// Failure reasons recorded on dead-letter records and the failure counter.
const (
	reasonJSONDecode = "json_decode"
	reasonValidation = "validation"
	reasonProcessing = "processing"
)

// Service owns the worker's background loops and their shared collaborators.
// Exactly one chunk is in flight at a time; the heartbeat loop runs alongside.
type Service struct {
	cfg       config.Config
	store     *redisstore.Client
	consumer  *queue.Consumer
	processor *usecase.Processor
	results   *storage.ResultStorage
	validate  *validator.Validate

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ready   atomic.Bool
	stopped atomic.Bool
}

// NewService wires a service from its collaborators.
func NewService(cfg config.Config, store *redisstore.Client, consumer *queue.Consumer, processor *usecase.Processor, results *storage.ResultStorage) *Service {
	return &Service{
		cfg:       cfg,
		store:     store,
		consumer:  consumer,
		processor: processor,
		results:   results,
		validate:  validator.New(),
	}
}

// Start verifies store connectivity and spawns the heartbeat and processing
// loops. It returns once both loops are running.
func (s *Service) Start(ctx context.Context) error {
	if err := s.store.EnsureConnection(ctx); err != nil {
		return err
	}
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(2)
	go s.heartbeatLoop(ctx)
	go s.processingLoop(ctx)
	s.ready.Store(true)
	slog.Info("worker started",
		slog.String("worker_id", s.cfg.WorkerID),
		slog.String("queue_prefix", s.cfg.RedisQueuePrefix))
	return nil
}

// Stop cancels both loops, waits for them, and closes the store. Idempotent.
func (s *Service) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	s.ready.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	if err := s.store.Close(); err != nil {
		slog.Warn("closing store failed", slog.Any("error", err))
	}
	slog.Info("worker stopped", slog.String("worker_id", s.cfg.WorkerID))
}

// Ready reports whether the loops are running (readiness probes).
func (s *Service) Ready() bool {
	return s.ready.Load()
}

func (s *Service) heartbeatLoop(ctx context.Context) {
	defer s.wg.Done()
	interval := time.Duration(s.cfg.HeartbeatIntervalSec) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.store.SetHeartbeat(ctx, s.cfg.WorkerID, interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.store.SetHeartbeat(ctx, s.cfg.WorkerID, interval)
		}
	}
}

func (s *Service) processingLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		fetched, err := s.consumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			slog.Error("fetch failed", slog.Any("error", err))
			continue
		}
		if fetched == nil {
			continue
		}
		s.HandlePayload(ctx, fetched.QueueKey, fetched.Payload, fetched.FetchTimeMS)
	}
}

// HandlePayload decodes, validates, processes, and stores one queue payload.
// Malformed payloads are dead-lettered and never abort the loop.
func (s *Service) HandlePayload(ctx context.Context, queueKey, payload string, fetchMS float64) {
	brandHint := queue.ExtractBrand(queueKey)

	if !json.Valid([]byte(payload)) {
		s.recordFailure(ctx, brandHint, "unknown", "Invalid JSON", payload, reasonJSONDecode)
		return
	}
	var chunk domain.Chunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		s.recordFailure(ctx, brandHint, rawChunkID(payload), "Validation failed", payload, reasonValidation)
		return
	}
	if err := s.validate.Struct(chunk); err != nil {
		chunkID := chunk.ChunkID
		if chunkID == "" {
			chunkID = rawChunkID(payload)
		}
		s.recordFailure(ctx, brandHint, chunkID, "Validation failed", payload, reasonValidation)
		return
	}

	brand := chunk.Brand
	if brand == "" {
		brand = brandHint
	}
	chunk.Brand = brand

	result, err := s.processor.ProcessChunk(ctx, chunk, fetchMS)
	if err != nil {
		slog.Error("processing chunk failed",
			slog.String("worker_id", s.cfg.WorkerID),
			slog.String("brand", brand),
			slog.String("chunk_id", chunk.ChunkID),
			slog.Any("error", err))
		s.recordFailure(ctx, brand, chunk.ChunkID, "Processing failed", payload, reasonProcessing)
		return
	}

	pushMS, err := s.results.PushResult(ctx, brand, result)
	if err != nil {
		slog.Error("pushing result failed",
			slog.String("worker_id", s.cfg.WorkerID),
			slog.String("brand", brand),
			slog.String("chunk_id", chunk.ChunkID),
			slog.Any("error", err))
		s.recordFailure(ctx, brand, chunk.ChunkID, "Processing failed", payload, reasonProcessing)
		return
	}
	result.Metrics.IOTimeMS += pushMS
	result.Metrics.TotalTaskTimeMS += pushMS

	observability.ProcessingTimeSeconds.WithLabelValues(s.cfg.WorkerID, brand).Observe(result.Metrics.TotalTaskTimeMS / 1000)
	observability.ChunksProcessedTotal.WithLabelValues(s.cfg.WorkerID, brand).Inc()
}

func (s *Service) recordFailure(ctx context.Context, brand, chunkID, detail, payload, reason string) {
	record := domain.FailureRecord{
		WorkerID: s.cfg.WorkerID,
		Brand:    brand,
		ChunkID:  chunkID,
		Reason:   detail,
		Payload:  payload,
	}
	if err := s.results.RecordFailure(ctx, record, reason); err != nil {
		slog.Error("recording failure failed",
			slog.String("brand", brand),
			slog.String("chunk_id", chunkID),
			slog.Any("error", err))
	}
}

// rawChunkID digs the chunkId out of an otherwise undecodable payload so the
// dead-letter record stays traceable.
func rawChunkID(payload string) string {
	var raw map[string]any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return "unknown"
	}
	if id, ok := raw["chunkId"].(string); ok && id != "" {
		return id
	}
	return "unknown"
}

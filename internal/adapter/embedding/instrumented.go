package embedding

import (
	"context"
	"log/slog"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
)

// Instrumented wraps an embedding adapter with a per-(worker, brand)
// duration histogram and a structured event per call.
type Instrumented struct {
	delegate domain.EmbeddingAdapter
	workerID string
}

// NewInstrumented wraps delegate with metrics and logging.
func NewInstrumented(delegate domain.EmbeddingAdapter, workerID string) *Instrumented {
	return &Instrumented{delegate: delegate, workerID: workerID}
}

// Embed implements domain.EmbeddingAdapter.
func (a *Instrumented) Embed(ctx context.Context, texts []string, labels domain.Labels) ([][]float64, error) {
	sw := retryx.NewStopwatch()
	vectors, err := a.delegate.Embed(ctx, texts, labels)
	dur := sw.Elapsed()
	observability.EmbeddingTimeSeconds.WithLabelValues(a.workerID, labels.Brand).Observe(dur.Seconds())
	if err != nil {
		return nil, err
	}
	slog.Info("embeddings generated",
		slog.String("worker_id", a.workerID),
		slog.String("brand", labels.Brand),
		slog.String("chunk_id", labels.ChunkID),
		slog.Int("texts", len(texts)),
		slog.Float64("embedding_time_ms", sw.ElapsedMS()))
	return vectors, nil
}

// ForProvider selects the adapter for the configured embeddings provider and
// wraps it with instrumentation.
func ForProvider(cfg config.Config) *Instrumented {
	var delegate domain.EmbeddingAdapter
	if cfg.EmbeddingsProvider == "local" {
		delegate = NewLocal()
	} else {
		delegate = NewRemote(cfg.EmbeddingsProvider)
	}
	return NewInstrumented(delegate, cfg.WorkerID)
}

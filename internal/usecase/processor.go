package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
	"github.com/fairyhunter13/brand-mention-worker/pkg/textx"
)

// Processor sequences the per-chunk analytics pipeline: preprocess, embed,
// cluster, then per-cluster summary, sentiment, and spike detection.
type Processor struct {
	embedder  domain.EmbeddingAdapter
	llm       domain.LLMAdapter
	clusterer domain.Clusterer
	spikes    domain.SpikeDetector
	cfg       config.Config
	workerID  string
}

// NewProcessor wires the pipeline collaborators.
func NewProcessor(embedder domain.EmbeddingAdapter, llm domain.LLMAdapter, clusterer domain.Clusterer, spikes domain.SpikeDetector, cfg config.Config) *Processor {
	return &Processor{
		embedder:  embedder,
		llm:       llm,
		clusterer: clusterer,
		spikes:    spikes,
		cfg:       cfg,
		workerID:  cfg.WorkerID,
	}
}

// ProcessChunk runs the pipeline over one decoded chunk. fetchMS seeds the
// I/O bucket; push time is added by the caller after the result is stored.
// Stages run in strict order and any stage error aborts the chunk.
func (p *Processor) ProcessChunk(ctx context.Context, chunk domain.Chunk, fetchMS float64) (domain.ChunkResult, error) {
	tracer := otel.Tracer("brand-mention-worker/processor")
	ctx, span := tracer.Start(ctx, "ProcessChunk")
	span.SetAttributes(
		attribute.String("brand", chunk.Brand),
		attribute.String("chunk_id", chunk.ChunkID),
		attribute.Int("mentions", len(chunk.Mentions)),
	)
	defer span.End()

	labels := domain.Labels{Brand: chunk.Brand, ChunkID: chunk.ChunkID}
	metrics := domain.ChunkMetrics{IOTimeMS: fetchMS}
	wall := retryx.NewStopwatch()

	texts := p.preprocess(chunk.Mentions, labels, &metrics)
	if len(texts) == 0 {
		metrics.TotalTaskTimeMS = wall.ElapsedMS() + metrics.IOTimeMS
		slog.Info("no mentions survived preprocessing",
			slog.String("worker_id", p.workerID),
			slog.String("brand", chunk.Brand),
			slog.String("chunk_id", chunk.ChunkID))
		return domain.ChunkResult{
			ChunkID:   chunk.ChunkID,
			Brand:     chunk.Brand,
			Timestamp: time.Now().Unix(),
			Clusters:  []domain.ClusterResult{},
			Metrics:   metrics,
		}, nil
	}

	embedSW := retryx.NewStopwatch()
	embeddings, err := p.embedder.Embed(ctx, texts, labels)
	metrics.EmbeddingTimeMS = embedSW.ElapsedMS()
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("op=usecase.ProcessChunk stage=embed: %w", err)
	}

	clustering, err := p.clusterer.Cluster(ctx, embeddings, labels)
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("op=usecase.ProcessChunk stage=cluster: %w", err)
	}
	metrics.ClusteringTimeMS = clustering.DurationMS

	clusters := make([]domain.ClusterResult, 0, len(clustering.Clusters))
	for _, group := range clustering.Clusters {
		result, aerr := p.analyzeCluster(ctx, chunk.Brand, group, texts, labels, &metrics)
		if aerr != nil {
			return domain.ChunkResult{}, fmt.Errorf("op=usecase.ProcessChunk stage=analyze cluster=%d: %w", group.ClusterID, aerr)
		}
		clusters = append(clusters, result)
	}

	metrics.TotalTaskTimeMS = wall.ElapsedMS() + metrics.IOTimeMS
	slog.Info("chunk processed",
		slog.String("worker_id", p.workerID),
		slog.String("brand", chunk.Brand),
		slog.String("chunk_id", chunk.ChunkID),
		slog.Int("mentions", len(texts)),
		slog.Int("clusters", len(clusters)),
		slog.Float64("total_task_time_ms", metrics.TotalTaskTimeMS))
	return domain.ChunkResult{
		ChunkID:   chunk.ChunkID,
		Brand:     chunk.Brand,
		Timestamp: time.Now().Unix(),
		Clusters:  clusters,
		Metrics:   metrics,
	}, nil
}

// preprocess cleans every mention text, drops empties, and deduplicates by
// cleaned text keeping first-occurrence order.
func (p *Processor) preprocess(mentions []domain.Mention, labels domain.Labels, metrics *domain.ChunkMetrics) []string {
	sw := retryx.NewStopwatch()
	seen := make(map[string]struct{}, len(mentions))
	texts := make([]string, 0, len(mentions))
	for _, m := range mentions {
		cleaned := textx.Clean(m.Text)
		if cleaned == "" {
			continue
		}
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		texts = append(texts, cleaned)
	}
	metrics.PreprocessingTimeMS = sw.ElapsedMS()
	observability.PreprocessingTimeSeconds.WithLabelValues(p.workerID, labels.Brand).Observe(metrics.PreprocessingTimeMS / 1000)
	return texts
}

func (p *Processor) analyzeCluster(ctx context.Context, brand string, group domain.ClusterGroup, texts []string, labels domain.Labels, metrics *domain.ChunkMetrics) (domain.ClusterResult, error) {
	clusterTexts := make([]string, 0, len(group.Indices))
	for _, idx := range group.Indices {
		if idx < 0 || idx >= len(texts) {
			continue
		}
		clusterTexts = append(clusterTexts, texts[idx])
	}

	llmSW := retryx.NewStopwatch()
	summary, err := p.llm.Summarize(ctx, clusterTexts, labels)
	if err != nil {
		metrics.LLMTimeMS += llmSW.ElapsedMS()
		return domain.ClusterResult{}, err
	}
	sentiment, err := p.llm.Sentiment(ctx, clusterTexts, labels)
	metrics.LLMTimeMS += llmSW.ElapsedMS()
	if err != nil {
		return domain.ClusterResult{}, err
	}

	spikeSW := retryx.NewStopwatch()
	spike, err := p.spikes.Detect(ctx, brand, group.ClusterID, len(clusterTexts))
	metrics.SpikeDetectionTimeMS += spikeSW.ElapsedMS()
	if err != nil {
		return domain.ClusterResult{}, err
	}

	examples := clusterTexts
	if len(examples) > p.cfg.PreprocessingExamples {
		examples = examples[:p.cfg.PreprocessingExamples]
	}
	return domain.ClusterResult{
		ClusterID: group.ClusterID,
		Count:     len(clusterTexts),
		Examples:  examples,
		Summary:   summary,
		Spike:     spike.IsSpike,
		Sentiment: sentiment,
	}, nil
}

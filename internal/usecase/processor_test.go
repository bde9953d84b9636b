package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

type stubEmbedder struct {
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string, _ domain.Labels) ([][]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{float64(i + 1), 1}
	}
	return out, nil
}

type stubLLM struct {
	summary      string
	summaryErr   error
	sentiment    domain.SentimentScores
	sentimentErr error
}

func (s *stubLLM) Summarize(context.Context, []string, domain.Labels) (string, error) {
	return s.summary, s.summaryErr
}

func (s *stubLLM) Sentiment(context.Context, []string, domain.Labels) (domain.SentimentScores, error) {
	return s.sentiment, s.sentimentErr
}

type stubClusterer struct {
	groups []domain.ClusterGroup
}

func (s *stubClusterer) Cluster(context.Context, [][]float64, domain.Labels) (domain.ClusteringOutput, error) {
	return domain.ClusteringOutput{Clusters: s.groups, DurationMS: 1}, nil
}

type stubDetector struct {
	spikes map[int]bool
}

func (s *stubDetector) Detect(_ context.Context, _ string, clusterID, currentCount int) (domain.SpikeResult, error) {
	return domain.SpikeResult{IsSpike: s.spikes[clusterID], CurrentCount: currentCount}, nil
}

func testChunk(mentionTexts ...string) domain.Chunk {
	mentions := make([]domain.Mention, len(mentionTexts))
	for i, text := range mentionTexts {
		mentions[i] = domain.Mention{
			ID:        "m" + string(rune('1'+i)),
			Source:    "twitter",
			Text:      text,
			CreatedAt: time.Now(),
		}
	}
	return domain.Chunk{Brand: "acme", ChunkID: "c1", CreatedAt: time.Now(), Mentions: mentions}
}

func testProcessor(llm domain.LLMAdapter, clusterer domain.Clusterer, detector domain.SpikeDetector) *Processor {
	cfg := config.Config{WorkerID: "worker-test", PreprocessingExamples: 3}
	return NewProcessor(&stubEmbedder{}, llm, clusterer, detector, cfg)
}

func TestProcessChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("full pipeline over two clusters", func(t *testing.T) {
		llm := &stubLLM{summary: "a summary", sentiment: domain.SentimentScores{Positive: 0.6, Negative: 0.1, Neutral: 0.3}}
		clusterer := &stubClusterer{groups: []domain.ClusterGroup{
			{ClusterID: 0, Indices: []int{0}},
			{ClusterID: 1, Indices: []int{1}},
		}}
		p := testProcessor(llm, clusterer, &stubDetector{})

		// m2 duplicates m1 after cleaning and is dropped.
		chunk := testChunk("Great Product!", "great   product!", "bad experience")
		result, err := p.ProcessChunk(ctx, chunk, 5)
		require.NoError(t, err)

		assert.Equal(t, "c1", result.ChunkID)
		assert.Equal(t, "acme", result.Brand)
		require.Len(t, result.Clusters, 2)
		assert.Equal(t, []string{"great product!"}, result.Clusters[0].Examples)
		assert.Equal(t, []string{"bad experience"}, result.Clusters[1].Examples)
		assert.Equal(t, "a summary", result.Clusters[0].Summary)
		assert.Equal(t, 0.6, result.Clusters[0].Sentiment.Positive)
		assert.False(t, result.Clusters[0].Spike)

		assert.Equal(t, 5.0, result.Metrics.IOTimeMS)
		assert.GreaterOrEqual(t, result.Metrics.TotalTaskTimeMS, result.Metrics.IOTimeMS)
		assert.Equal(t, 1.0, result.Metrics.ClusteringTimeMS)
	})

	t.Run("empty after preprocessing short-circuits", func(t *testing.T) {
		p := testProcessor(&stubLLM{}, &stubClusterer{}, &stubDetector{})
		chunk := testChunk("https://x.com", "   ")
		result, err := p.ProcessChunk(ctx, chunk, 2)
		require.NoError(t, err)
		assert.Empty(t, result.Clusters)
		assert.NotNil(t, result.Clusters)
		assert.Equal(t, 2.0, result.Metrics.IOTimeMS)
		assert.GreaterOrEqual(t, result.Metrics.TotalTaskTimeMS, 2.0)
	})

	t.Run("examples capped and count covers the whole cluster", func(t *testing.T) {
		clusterer := &stubClusterer{groups: []domain.ClusterGroup{
			{ClusterID: 0, Indices: []int{0, 1, 2, 3, 4}},
		}}
		p := testProcessor(&stubLLM{summary: "s"}, clusterer, &stubDetector{})
		chunk := testChunk("one", "two", "three", "four", "five")
		result, err := p.ProcessChunk(ctx, chunk, 0)
		require.NoError(t, err)
		require.Len(t, result.Clusters, 1)
		assert.Equal(t, 5, result.Clusters[0].Count)
		assert.Len(t, result.Clusters[0].Examples, 3)
		assert.GreaterOrEqual(t, result.Clusters[0].Count, len(result.Clusters[0].Examples))
	})

	t.Run("spike flag propagates", func(t *testing.T) {
		clusterer := &stubClusterer{groups: []domain.ClusterGroup{{ClusterID: 7, Indices: []int{0}}}}
		p := testProcessor(&stubLLM{summary: "s"}, clusterer, &stubDetector{spikes: map[int]bool{7: true}})
		result, err := p.ProcessChunk(ctx, testChunk("hot topic"), 0)
		require.NoError(t, err)
		assert.True(t, result.Clusters[0].Spike)
	})

	t.Run("summarize failure aborts the chunk", func(t *testing.T) {
		clusterer := &stubClusterer{groups: []domain.ClusterGroup{{ClusterID: 0, Indices: []int{0}}}}
		p := testProcessor(&stubLLM{summaryErr: errors.New("llm down")}, clusterer, &stubDetector{})
		_, err := p.ProcessChunk(ctx, testChunk("text"), 0)
		assert.ErrorContains(t, err, "llm down")
	})

	t.Run("embed failure aborts the chunk", func(t *testing.T) {
		cfg := config.Config{WorkerID: "worker-test", PreprocessingExamples: 3}
		p := NewProcessor(&stubEmbedder{err: errors.New("embed down")}, &stubLLM{}, &stubClusterer{}, &stubDetector{}, cfg)
		_, err := p.ProcessChunk(ctx, testChunk("text"), 0)
		assert.ErrorContains(t, err, "embed down")
	})

	t.Run("out of range indices are skipped", func(t *testing.T) {
		clusterer := &stubClusterer{groups: []domain.ClusterGroup{{ClusterID: 0, Indices: []int{0, 9}}}}
		p := testProcessor(&stubLLM{summary: "s"}, clusterer, &stubDetector{})
		result, err := p.ProcessChunk(ctx, testChunk("only one"), 0)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Clusters[0].Count)
	})
}

package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

func TestLocalEmbed(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	labels := domain.Labels{Brand: "acme", ChunkID: "c1"}

	t.Run("row per text at fixed dimension", func(t *testing.T) {
		vectors, err := l.Embed(ctx, []string{"a", "b", "c"}, labels)
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		for _, v := range vectors {
			assert.Len(t, v, 384)
		}
	})

	t.Run("deterministic bitwise", func(t *testing.T) {
		first, err := l.Embed(ctx, []string{"same text"}, labels)
		require.NoError(t, err)
		second, err := l.Embed(ctx, []string{"same text"}, labels)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("distinct texts differ", func(t *testing.T) {
		vectors, err := l.Embed(ctx, []string{"one", "two"}, labels)
		require.NoError(t, err)
		assert.NotEqual(t, vectors[0], vectors[1])
	})

	t.Run("values in unit range", func(t *testing.T) {
		vectors, err := l.Embed(ctx, []string{"range check"}, labels)
		require.NoError(t, err)
		for _, v := range vectors[0] {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	})
}

func TestRemoteEmbedReturnsZeros(t *testing.T) {
	r := NewRemote("openai")
	vectors, err := r.Embed(context.Background(), []string{"a", "b"}, domain.Labels{})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	for _, v := range vectors {
		for _, x := range v {
			assert.Zero(t, x)
		}
	}
}

func TestForProvider(t *testing.T) {
	cfg := config.Config{WorkerID: "worker-test", EmbeddingsProvider: "local"}
	adapter := ForProvider(cfg)
	vectors, err := adapter.Embed(context.Background(), []string{"x"}, domain.Labels{Brand: "acme"})
	require.NoError(t, err)
	assert.Len(t, vectors[0], 384)
}

// Package embedding provides the embedding adapters behind the
// domain.EmbeddingAdapter port: a local deterministic model, a reserved
// remote provider, and an instrumented wrapper.
package embedding

import (
	"context"
	"crypto/sha256"
	"log/slog"

	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

const defaultDim = 384

// Local embeds texts without any external service. No on-device inference
// runtime is bundled, so it always runs the deterministic hash projection:
// SHA-256 of the text bytes, digest repeat-tiled to D, scaled by 1/255 into
// [0,1]^D. Same text always yields the same vector; distinct texts collide
// only if the hash does.
type Local struct {
	dim int
}

// NewLocal constructs the local adapter with D=384.
func NewLocal() *Local {
	slog.Warn("no local embedding model available, using hash-based fallback",
		slog.Int("dim", defaultDim))
	return &Local{dim: defaultDim}
}

// Embed implements domain.EmbeddingAdapter.
func (l *Local) Embed(_ context.Context, texts []string, _ domain.Labels) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = hashEmbed(text, l.dim)
	}
	return out, nil
}

func hashEmbed(text string, dim int) []float64 {
	digest := sha256.Sum256([]byte(text))
	vec := make([]float64, dim)
	for i := range vec {
		vec[i] = float64(digest[i%len(digest)]) / 255.0
	}
	return vec
}

package embedding

import (
	"context"
	"log/slog"

	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

// Remote reserves the contract for a hosted embedding provider. The real
// implementation is out of scope; it returns an all-zeros matrix and warns so
// misconfiguration is visible in logs rather than silent.
type Remote struct {
	provider string
	dim      int
}

// NewRemote constructs the placeholder remote adapter.
func NewRemote(provider string) *Remote {
	return &Remote{provider: provider, dim: defaultDim}
}

// Embed implements domain.EmbeddingAdapter.
func (r *Remote) Embed(_ context.Context, texts []string, labels domain.Labels) ([][]float64, error) {
	slog.Warn("remote embedding provider not implemented; returning zeros",
		slog.String("provider", r.provider),
		slog.Int("texts", len(texts)),
		slog.String("brand", labels.Brand),
		slog.String("chunk_id", labels.ChunkID))
	out := make([][]float64, len(texts))
	for i := range out {
		out[i] = make([]float64, r.dim)
	}
	return out, nil
}

// Package usecase contains the chunk processing pipeline and its
// collaborators: clustering, spike detection, and the processor itself.
package usecase

import (
	"context"
	"log/slog"
	"math"

	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
)

const cosineThreshold = 0.80

// CosineClusterer groups embeddings by greedy first-fit against running
// centroids: each vector joins the first existing cluster whose centroid has
// cosine similarity >= 0.80, otherwise it starts a new cluster. Deterministic
// for a given input order; cluster ids are assigned in creation order.
type CosineClusterer struct {
	workerID string
}

// NewCosineClusterer builds the default clusterer.
func NewCosineClusterer(workerID string) *CosineClusterer {
	return &CosineClusterer{workerID: workerID}
}

type centroid struct {
	sum   []float64
	count int
}

func (c *centroid) mean() []float64 {
	out := make([]float64, len(c.sum))
	for i, v := range c.sum {
		out[i] = v / float64(c.count)
	}
	return out
}

func (c *centroid) add(vec []float64) {
	for i, v := range vec {
		c.sum[i] += v
	}
	c.count++
}

// Cluster implements domain.Clusterer. Indices refer to row positions in the
// embedding matrix; every row is assigned to exactly one cluster.
func (c *CosineClusterer) Cluster(_ context.Context, embeddings [][]float64, labels domain.Labels) (domain.ClusteringOutput, error) {
	sw := retryx.NewStopwatch()

	var (
		centroids []*centroid
		groups    []domain.ClusterGroup
	)
	for i, vec := range embeddings {
		assigned := -1
		for j, cent := range centroids {
			if cosine(vec, cent.mean()) >= cosineThreshold {
				assigned = j
				break
			}
		}
		if assigned == -1 {
			cent := &centroid{sum: make([]float64, len(vec))}
			cent.add(vec)
			centroids = append(centroids, cent)
			groups = append(groups, domain.ClusterGroup{ClusterID: len(groups), Indices: []int{i}})
			continue
		}
		centroids[assigned].add(vec)
		groups[assigned].Indices = append(groups[assigned].Indices, i)
	}

	out := domain.ClusteringOutput{Clusters: groups, DurationMS: sw.ElapsedMS()}
	slog.Debug("clustering completed",
		slog.String("worker_id", c.workerID),
		slog.String("brand", labels.Brand),
		slog.String("chunk_id", labels.ChunkID),
		slog.Int("mentions", len(embeddings)),
		slog.Int("clusters", len(groups)),
		slog.Float64("clustering_time_ms", out.DurationMS))
	return out, nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

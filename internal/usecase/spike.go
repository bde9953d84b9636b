package usecase

import (
	"context"
	"log/slog"
	"math"

	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

const spikeMinHistory = 3

// SpikeStore is the slice of the store the detector needs: a rolling
// newest-first count list per (brand, cluster). Read errors surface as an
// empty history; append errors are logged inside the store.
type SpikeStore interface {
	SpikeHistory(ctx context.Context, brand string, clusterID int) []int
	AppendSpikeHistory(ctx context.Context, brand string, clusterID, value int)
}

// StatDetector flags a count observation as a spike when it exceeds the prior
// history's mean by two standard deviations. Stateless beyond the store's
// rolling list; concurrent detectors on the same key are safe because the
// append is pipeline-atomic.
type StatDetector struct {
	store    SpikeStore
	workerID string
}

// NewStatDetector builds a detector over a spike store.
func NewStatDetector(store SpikeStore, workerID string) *StatDetector {
	return &StatDetector{store: store, workerID: workerID}
}

// Detect implements domain.SpikeDetector. The current count is appended after
// the prior history is read so it never enters its own baseline. Fewer than
// three prior observations means no spike.
func (d *StatDetector) Detect(ctx context.Context, brand string, clusterID, currentCount int) (domain.SpikeResult, error) {
	history := d.store.SpikeHistory(ctx, brand, clusterID)
	d.store.AppendSpikeHistory(ctx, brand, clusterID, currentCount)

	if len(history) < spikeMinHistory {
		return domain.SpikeResult{CurrentCount: currentCount}, nil
	}

	mean, stddev := meanStddev(history)
	isSpike := float64(currentCount) > mean+2*stddev && currentCount > 1
	if isSpike {
		slog.Info("spike detected",
			slog.String("worker_id", d.workerID),
			slog.String("brand", brand),
			slog.Int("cluster_id", clusterID),
			slog.Int("current_count", currentCount),
			slog.Float64("historical_mean", mean),
			slog.Float64("historical_stddev", stddev))
	}
	return domain.SpikeResult{IsSpike: isSpike, HistoricalMean: mean, CurrentCount: currentCount}, nil
}

func meanStddev(values []int) (float64, float64) {
	n := float64(len(values))
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	mean := sum / n
	var sq float64
	for _, v := range values {
		d := float64(v) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

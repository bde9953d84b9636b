// Package queue implements the competitive per-brand queue consumer.
package queue

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/store/redisstore"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
)

// Fetched is one payload popped from a brand queue.
type Fetched struct {
	QueueKey    string
	Payload     string
	FetchTimeMS float64
}

// Consumer polls the per-brand chunk queues with a blocking pop across the
// full key set. It is stateless across chunks except for idle-timing fields.
type Consumer struct {
	store    *redisstore.Client
	cfg      config.Config
	workerID string

	waitingSince time.Time
	lastWaitLog  time.Time
}

// NewConsumer builds a consumer bound to a store client.
func NewConsumer(store *redisstore.Client, cfg config.Config) *Consumer {
	return &Consumer{store: store, cfg: cfg, workerID: cfg.WorkerID}
}

// Fetch scans for brand queues and block-pops across all of them. It returns
// nil when no work arrived within the pop timeout. Only context cancellation
// yields an error.
func (c *Consumer) Fetch(ctx context.Context) (*Fetched, error) {
	timeout := time.Duration(c.cfg.BLPopTimeoutSec) * time.Second
	queueKeys := c.store.ScanBrandQueues(ctx)
	if len(queueKeys) == 0 {
		c.updateWaiting(nil)
		if err := sleepCtx(ctx, timeout); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sw := retryx.NewStopwatch()
	key, payload, err := c.store.BLPop(ctx, queueKeys, timeout)
	fetchMS := sw.ElapsedMS()
	if err != nil {
		return nil, err
	}

	if key == "" {
		c.updateWaiting(queueKeys)
		observability.IOTimeSeconds.WithLabelValues(c.workerID, "unknown", "fetch").Observe(fetchMS / 1000)
		return nil, nil
	}

	c.clearWaiting()
	observability.IOTimeSeconds.WithLabelValues(c.workerID, ExtractBrand(key), "fetch").Observe(fetchMS / 1000)
	slog.Info("fetched chunk from queue",
		slog.String("worker_id", c.workerID),
		slog.String("queue", key),
		slog.Float64("fetch_time_ms", fetchMS))
	return &Fetched{QueueKey: key, Payload: payload, FetchTimeMS: fetchMS}, nil
}

func (c *Consumer) updateWaiting(queues []string) {
	now := time.Now()
	if c.waitingSince.IsZero() {
		c.waitingSince = now
	}
	elapsed := now.Sub(c.waitingSince).Seconds()
	observability.WaitingSeconds.WithLabelValues(c.workerID).Set(elapsed)
	if now.Sub(c.lastWaitLog) >= time.Duration(c.cfg.MetricsWaitLogIntervalSec)*time.Second {
		names := "<none>"
		if len(queues) > 0 {
			names = strings.Join(queues, ", ")
		}
		slog.Info("waiting for new tasks",
			slog.String("worker_id", c.workerID),
			slog.String("queues", names),
			slog.Float64("waiting_seconds", elapsed))
		c.lastWaitLog = now
	}
}

func (c *Consumer) clearWaiting() {
	c.waitingSince = time.Time{}
	observability.WaitingSeconds.WithLabelValues(c.workerID).Set(0)
}

// ExtractBrand pulls the brand out of a queue key shaped
// "<prefix>:<brand>:chunks". The prefix may itself contain colons; the brand
// is the second-to-last segment. Unrecognizable keys map to "unknown".
func ExtractBrand(queueKey string) string {
	parts := strings.Split(queueKey, ":")
	if len(parts) < 3 {
		return "unknown"
	}
	return parts[len(parts)-2]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Package redisstore wraps the shared Redis key-value/queue store.
package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
)

const spikeHistoryMaxLen = 100

// Client encapsulates Redis interactions with retry logic. It owns the single
// logical connection; the spike-history pipeline is serialized by a
// process-local mutex so concurrent appenders do not interleave.
type Client struct {
	rdb *redis.Client
	cfg config.Config
	mu  sync.Mutex
}

// New constructs a client from the configured Redis URL.
func New(cfg config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("op=redisstore.New: %w", err)
	}
	return &Client{rdb: redis.NewClient(opt), cfg: cfg}, nil
}

// NewWithClient wraps an existing go-redis client (used by tests).
func NewWithClient(rdb *redis.Client, cfg config.Config) *Client {
	return &Client{rdb: rdb, cfg: cfg}
}

func (c *Client) retryBase() time.Duration {
	return time.Duration(c.cfg.RetryBackoffBase * float64(time.Second))
}

// EnsureConnection pings the store with retries. Failure here is fatal at
// startup.
func (c *Client) EnsureConnection(ctx context.Context) error {
	err := retryx.Do(ctx, func() error {
		return c.rdb.Ping(ctx).Err()
	}, c.cfg.MaxRetries, c.retryBase())
	if err != nil {
		return fmt.Errorf("op=redisstore.EnsureConnection: %w", err)
	}
	return nil
}

// Ping probes the connection once (readiness checks).
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// BLPop atomically block-pops across keys until one yields or timeout
// elapses. Returns empty strings when no work arrived. A store error is
// swallowed: it is logged, the call sleeps for timeout, and no-work is
// returned, so the consumer loop never dies on transient store trouble.
// Context cancellation propagates.
func (c *Client) BLPop(ctx context.Context, keys []string, timeout time.Duration) (string, string, error) {
	if len(keys) == 0 {
		if err := sleepCtx(ctx, timeout); err != nil {
			return "", "", err
		}
		return "", "", nil
	}
	res, err := c.rdb.BLPop(ctx, timeout, keys...).Result()
	if err == redis.Nil {
		return "", "", nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", "", ctx.Err()
		}
		slog.Error("BLPOP failed", slog.Any("error", err))
		if serr := sleepCtx(ctx, timeout); serr != nil {
			return "", "", serr
		}
		return "", "", nil
	}
	if len(res) != 2 {
		return "", "", nil
	}
	return res[0], res[1], nil
}

// RPush appends to the tail of a list with retry.
func (c *Client) RPush(ctx context.Context, key, value string) error {
	err := retryx.Do(ctx, func() error {
		return c.rdb.RPush(ctx, key, value).Err()
	}, c.cfg.MaxRetries, c.retryBase())
	if err != nil {
		return fmt.Errorf("op=redisstore.RPush key=%s: %w", key, err)
	}
	return nil
}

// SetHeartbeat refreshes the worker liveness key. TTL is
// max(2*interval, interval+5s) so a single missed tick never expires the key.
// Errors are logged, not raised; the next tick tries again.
func (c *Client) SetHeartbeat(ctx context.Context, workerID string, interval time.Duration) {
	ttl := 2 * interval
	if alt := interval + 5*time.Second; alt > ttl {
		ttl = alt
	}
	key := "workers:heartbeat:" + workerID
	if err := c.rdb.Set(ctx, key, "alive", ttl).Err(); err != nil {
		slog.Warn("heartbeat failed", slog.String("worker_id", workerID), slog.Any("error", err))
	}
}

// RecordFailure appends a failure record with retry; same idempotent append
// semantics as RPush.
func (c *Client) RecordFailure(ctx context.Context, key, value string) error {
	return c.RPush(ctx, key, value)
}

// ScanBrandQueues returns the sorted unique set of keys matching
// "<queue_prefix>:*:chunks". Store errors yield the best-effort partial list.
func (c *Client) ScanBrandQueues(ctx context.Context) []string {
	pattern := c.cfg.RedisQueuePrefix + ":*:chunks"
	var (
		cursor uint64
		found  []string
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Error("scanning brand queues failed", slog.Any("error", err))
			break
		}
		found = append(found, keys...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	seen := make(map[string]struct{}, len(found))
	out := make([]string, 0, len(found))
	for _, k := range found {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SpikeHistory reads the full rolling count list for (brand, cluster),
// newest first. Unparseable entries are skipped; store errors yield an empty
// history (treated as "no spike" upstream).
func (c *Client) SpikeHistory(ctx context.Context, brand string, clusterID int) []int {
	key := c.spikeKey(brand, clusterID)
	items, err := c.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		slog.Warn("fetching spike history failed", slog.String("key", key), slog.Any("error", err))
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, convErr := strconv.Atoi(item)
		if convErr != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// AppendSpikeHistory pushes a count observation at the head of the rolling
// list, trims it to 100 entries, and refreshes the TTL as one pipeline under
// the client mutex.
func (c *Client) AppendSpikeHistory(ctx context.Context, brand string, clusterID, value int) {
	key := c.spikeKey(brand, clusterID)
	c.mu.Lock()
	defer c.mu.Unlock()
	pipe := c.rdb.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, spikeHistoryMaxLen-1)
	pipe.Expire(ctx, key, time.Duration(c.cfg.SpikeHistoryTTLSec)*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("updating spike history failed", slog.String("key", key), slog.Any("error", err))
	}
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) spikeKey(brand string, clusterID int) string {
	return fmt.Sprintf("%s:%s:%d", c.cfg.RedisSpikePrefix, brand, clusterID)
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

// Package retryx provides backoff retries and a scoped stopwatch.
package retryx

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Do invokes op, retrying up to retries additional times on error with
// exponential delays (base, 2*base, 4*base, ...). The final error surfaces
// unchanged. Only use for operations whose store-side effect is idempotent.
func Do(ctx context.Context, op func() error, retries int, base time.Duration) error {
	if retries <= 0 {
		return op()
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = base
	expo.Multiplier = 2
	expo.RandomizationFactor = 0
	expo.MaxInterval = base * time.Duration(1<<uint(retries))
	expo.MaxElapsedTime = 0
	bo := backoff.WithMaxRetries(backoff.WithContext(expo, ctx), uint64(retries))
	return backoff.Retry(op, bo)
}

// Stopwatch measures wall-clock time from construction. It keeps running on
// failure paths; callers read ElapsedMS whenever a stage finishes.
type Stopwatch struct {
	start time.Time
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch { return &Stopwatch{start: time.Now()} }

// Elapsed returns the time since construction.
func (s *Stopwatch) Elapsed() time.Duration { return time.Since(s.start) }

// ElapsedMS returns the time since construction in milliseconds.
func (s *Stopwatch) ElapsedMS() float64 {
	return float64(s.Elapsed()) / float64(time.Millisecond)
}

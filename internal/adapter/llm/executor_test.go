package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

func geminiResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	}
}

func testExecutor(t *testing.T, handler http.HandlerFunc, cfg config.Config) *Executor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	e := NewExecutor(cfg)
	e.baseURL = srv.URL
	return e
}

func TestRunChain(t *testing.T) {
	ctx := context.Background()
	labels := domain.Labels{Brand: "acme", ChunkID: "c1"}
	cfg := config.Config{
		GeminiAPIKey:      "test-key",
		GeminiModel:       "gemini-1.5-flash",
		GeminiAPIVersion:  "v1",
		LLMMaxConcurrency: 2,
	}

	t.Run("returns the generated text", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(geminiResponse("a concise overview"))
		}, cfg)
		out, err := e.RunChain(ctx, "prompt", time.Second, labels, "summary")
		require.NoError(t, err)
		assert.Equal(t, "a concise overview", out)
	})

	t.Run("missing key fails fast", func(t *testing.T) {
		e := NewExecutor(config.Config{LLMMaxConcurrency: 1})
		_, err := e.RunChain(ctx, "prompt", time.Second, labels, "summary")
		assert.ErrorIs(t, err, domain.ErrNotConfigured)
	})

	t.Run("timeout maps to upstream timeout", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			_ = json.NewEncoder(w).Encode(geminiResponse("late"))
		}, cfg)
		_, err := e.RunChain(ctx, "prompt", 50*time.Millisecond, labels, "summary")
		assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	})

	t.Run("non-200 surfaces as error", func(t *testing.T) {
		e := testExecutor(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}, cfg)
		_, err := e.RunChain(ctx, "prompt", time.Second, labels, "summary")
		assert.ErrorContains(t, err, "429")
	})

	t.Run("permits bound in-flight calls", func(t *testing.T) {
		var inflight, peak atomic.Int32
		e := testExecutor(t, func(w http.ResponseWriter, _ *http.Request) {
			cur := inflight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			inflight.Add(-1)
			_ = json.NewEncoder(w).Encode(geminiResponse("ok"))
		}, cfg)

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.RunChain(ctx, "prompt", 5*time.Second, labels, "summary")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		assert.LessOrEqual(t, peak.Load(), int32(cfg.LLMMaxConcurrency))
	})
}

func TestEmbedQuery(t *testing.T) {
	cfg := config.Config{
		GeminiAPIKey:      "test-key",
		GeminiAPIVersion:  "v1",
		LLMMaxConcurrency: 1,
	}
	e := testExecutor(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, 0.2}},
		})
	}, cfg)
	vec, err := e.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2}, vec)
}

func TestRoadmapPrompt(t *testing.T) {
	p := roadmapPrompt(map[string]string{"interests": "distributed systems"})
	assert.Contains(t, p, "Interests: distributed systems")
	assert.Contains(t, p, "Skills: Not specified")
	assert.Contains(t, p, "Goal: Not specified")
}

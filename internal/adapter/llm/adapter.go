package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/pkg/retryx"
)

// Invoker is the capability shared by every provider: one prompt in, one
// text response out, under a wall-clock timeout.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, timeout time.Duration, labels domain.Labels, operation string) (string, error)
}

// geminiInvoker routes prompts through the shared executor.
type geminiInvoker struct {
	exec *Executor
}

func (g geminiInvoker) Invoke(ctx context.Context, prompt string, timeout time.Duration, labels domain.Labels, operation string) (string, error) {
	return g.exec.RunChain(ctx, prompt, timeout, labels, operation)
}

// Adapter implements domain.LLMAdapter over a primary provider with an
// optional fallback. Any primary failure (timeouts included) logs a warning
// and retries once on the fallback under the same timeout; with no fallback
// the error propagates.
type Adapter struct {
	primary   Invoker
	fallback  Invoker
	maxTokens int
	timeout   time.Duration
	workerID  string
}

// NewAdapter selects providers from configuration:
//   - mock: mock primary, no fallback
//   - gemini: executor primary; OpenAI fallback when a key is present, else mock
//   - openai: OpenAI primary; executor fallback when a Gemini key is present, else mock
func NewAdapter(cfg config.Config, exec *Executor) (*Adapter, error) {
	a := &Adapter{
		maxTokens: cfg.LLMSummaryMaxTokens,
		timeout:   time.Duration(cfg.LLMTimeoutSec) * time.Second,
		workerID:  cfg.WorkerID,
	}
	switch cfg.LLMProvider {
	case "mock":
		a.primary = Mock{}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("op=llm.NewAdapter: %w: GEMINI_API_KEY must be set when LLM_PROVIDER is 'gemini'", domain.ErrNotConfigured)
		}
		a.primary = geminiInvoker{exec: exec}
		if cfg.OpenAIAPIKey != "" {
			a.fallback = NewOpenAI(cfg)
		} else {
			a.fallback = Mock{}
		}
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("op=llm.NewAdapter: %w: OPENAI_API_KEY must be set when LLM_PROVIDER is 'openai'", domain.ErrNotConfigured)
		}
		a.primary = NewOpenAI(cfg)
		if cfg.GeminiAPIKey != "" {
			a.fallback = geminiInvoker{exec: exec}
		} else {
			a.fallback = Mock{}
		}
	default:
		return nil, fmt.Errorf("op=llm.NewAdapter: unsupported LLM provider %q", cfg.LLMProvider)
	}
	return a, nil
}

// NewAdapterWith wires explicit providers (used by tests).
func NewAdapterWith(primary, fallback Invoker, maxTokens int, timeout time.Duration, workerID string) *Adapter {
	return &Adapter{primary: primary, fallback: fallback, maxTokens: maxTokens, timeout: timeout, workerID: workerID}
}

// Summarize implements domain.LLMAdapter.
func (a *Adapter) Summarize(ctx context.Context, texts []string, labels domain.Labels) (string, error) {
	return a.invoke(ctx, summaryPrompt(texts, a.maxTokens), labels, "summary")
}

// Sentiment implements domain.LLMAdapter. A response that fails to parse as a
// JSON object yields the (0.33, 0.33, 0.34) default; missing fields coerce to
// 0 (positive, negative) or 1 (neutral). Values are never renormalized.
func (a *Adapter) Sentiment(ctx context.Context, texts []string, labels domain.Labels) (domain.SentimentScores, error) {
	resp, err := a.invoke(ctx, sentimentPrompt(texts), labels, "sentiment")
	if err != nil {
		return domain.SentimentScores{}, err
	}
	return parseSentiment(resp), nil
}

func (a *Adapter) invoke(ctx context.Context, prompt string, labels domain.Labels, operation string) (string, error) {
	sw := retryx.NewStopwatch()
	out, err := a.primary.Invoke(ctx, prompt, a.timeout, labels, operation)
	if err != nil {
		slog.Warn("primary LLM failed, attempting fallback",
			slog.String("worker_id", a.workerID),
			slog.String("brand", labels.Brand),
			slog.String("chunk_id", labels.ChunkID),
			slog.String("operation", operation),
			slog.Any("error", err))
		if a.fallback == nil {
			return "", err
		}
		out, err = a.fallback.Invoke(ctx, prompt, a.timeout, labels, operation)
		if err != nil {
			return "", err
		}
	}
	dur := sw.Elapsed()
	observability.LLMLatencySeconds.WithLabelValues(a.workerID, labels.Brand, operation).Observe(dur.Seconds())
	slog.Info("LLM operation completed",
		slog.String("worker_id", a.workerID),
		slog.String("brand", labels.Brand),
		slog.String("chunk_id", labels.ChunkID),
		slog.String("operation", operation),
		slog.Float64("llm_time_ms", dur.Seconds()*1000))
	return out, nil
}

func parseSentiment(resp string) domain.SentimentScores {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(resp), &parsed); err != nil || parsed == nil {
		return domain.DefaultSentiment()
	}
	return domain.SentimentScores{
		Positive: floatField(parsed, "positive", 0.0),
		Negative: floatField(parsed, "negative", 0.0),
		Neutral:  floatField(parsed, "neutral", 1.0),
	}
}

func floatField(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return def
}

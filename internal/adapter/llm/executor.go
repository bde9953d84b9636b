// Package llm provides the bounded-concurrency executor for the remote
// generative model, the provider clients, and the summary/sentiment adapter.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// Executor owns the process-wide shared handles to the Gemini API: a chat
// client, an embedding client, and an acquisition permit of capacity
// LLM_MAX_CONCURRENCY. A successful call sleeps LLM_MIN_DELAY_SEC before
// releasing its permit, which caps both in-flight and per-window request
// count against an aggressively rate-limited provider.
type Executor struct {
	cfg     config.Config
	baseURL string
	hc      *http.Client

	once     sync.Once
	initErr  error
	permits  chan struct{}
	minDelay time.Duration
}

// NewExecutor builds an executor. Initialization is lazy: the API key is only
// required once the first call happens.
func NewExecutor(cfg config.Config) *Executor {
	return &Executor{cfg: cfg, baseURL: defaultGeminiBaseURL, hc: &http.Client{}}
}

// init is lazy and idempotent; it fails fast when no API key is configured.
func (e *Executor) init() error {
	e.once.Do(func() {
		if e.cfg.GeminiAPIKey == "" {
			e.initErr = fmt.Errorf("op=llm.Executor: %w: GEMINI_API_KEY must be set when using the Gemini LLM provider", domain.ErrNotConfigured)
			return
		}
		e.permits = make(chan struct{}, e.cfg.LLMMaxConcurrency)
		e.minDelay = time.Duration(e.cfg.LLMMinDelaySec * float64(time.Second))
		slog.Info("initialized shared Gemini clients",
			slog.String("model", e.cfg.GeminiModel),
			slog.String("api_version", e.cfg.GeminiAPIVersion),
			slog.Int("max_concurrency", e.cfg.LLMMaxConcurrency),
			slog.Float64("min_delay_sec", e.minDelay.Seconds()))
	})
	return e.initErr
}

// RunChain sends one prompt through the chat model under a permit and a
// wall-clock timeout. Timeouts and transport errors release the permit
// immediately and surface; successes hold the permit through the min delay.
func (e *Executor) RunChain(ctx context.Context, prompt string, timeout time.Duration, labels domain.Labels, operation string) (string, error) {
	if err := e.init(); err != nil {
		return "", err
	}
	select {
	case e.permits <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-e.permits }()

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := e.generate(cctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("op=llm.RunChain operation=%s: %w", operation, domain.ErrUpstreamTimeout)
		}
		slog.Warn("gemini invocation failed",
			slog.String("brand", labels.Brand),
			slog.String("chunk_id", labels.ChunkID),
			slog.String("operation", operation),
			slog.Float64("timeout_sec", timeout.Seconds()),
			slog.Any("error", err))
		return "", err
	}
	if e.minDelay > 0 {
		timer := time.NewTimer(e.minDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	return out, nil
}

// RunRoadmap renders the roadmap prompt family (interests/skills/goal with
// "Not specified" defaults) through the same executor pathway.
func (e *Executor) RunRoadmap(ctx context.Context, vars map[string]string, timeout time.Duration, labels domain.Labels) (string, error) {
	return e.RunChain(ctx, roadmapPrompt(vars), timeout, labels, "roadmap")
}

// EmbedQuery embeds a single text through the executor-owned embedding
// client. Reserved for the remote embedding contract.
func (e *Executor) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if err := e.init(); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/%s/models/text-embedding-004:embedContent?key=%s",
		e.baseURL, e.cfg.GeminiAPIVersion, e.cfg.GeminiAPIKey)
	body := map[string]any{
		"content": map[string]any{"parts": []map[string]string{{"text": text}}},
	}
	var out struct {
		Embedding struct {
			Values []float64 `json:"values"`
		} `json:"embedding"`
	}
	if err := e.post(ctx, url, body, &out); err != nil {
		return nil, fmt.Errorf("op=llm.EmbedQuery: %w", err)
	}
	return out.Embedding.Values, nil
}

func (e *Executor) generate(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s",
		e.baseURL, e.cfg.GeminiAPIVersion, e.cfg.GeminiModel, e.cfg.GeminiAPIKey)
	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{"temperature": 0.3},
	}
	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := e.post(ctx, url, body, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func (e *Executor) post(ctx context.Context, url string, body, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gemini status %d: %s", resp.StatusCode, string(snippet))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

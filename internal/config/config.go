// Package config defines configuration parsing and helpers.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
)

// Config holds all worker configuration parsed from environment variables.
// Environment names are case-insensitive at the OS level; prefixes for the
// shared Redis key layout are configurable so multiple deployments can share
// one store.
type Config struct {
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	WorkerID       string `env:"WORKER_ID"`
	ChunkBatchSize int    `env:"CHUNK_BATCH_SIZE" envDefault:"10"`

	EmbeddingsProvider string `env:"EMBEDDINGS_PROVIDER" envDefault:"local"`
	LLMProvider        string `env:"LLM_PROVIDER" envDefault:"mock"`

	EmbeddingAPIKey string `env:"EMBEDDING_API_KEY"`
	LLMAPIKey       string `env:"LLM_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	GeminiModel      string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`
	GeminiAPIVersion string `env:"GEMINI_API_VERSION" envDefault:"v1"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`

	MaxRetries       int     `env:"MAX_RETRIES" envDefault:"3"`
	RetryBackoffBase float64 `env:"RETRY_BACKOFF_BASE" envDefault:"0.5"`

	PrometheusPort int    `env:"PROMETHEUS_PORT" envDefault:"9090"`
	HTTPPort       int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	HeartbeatIntervalSec      int `env:"HEARTBEAT_INTERVAL_SEC" envDefault:"10"`
	BLPopTimeoutSec           int `env:"BLPOP_TIMEOUT_SEC" envDefault:"5"`
	MetricsWaitLogIntervalSec int `env:"METRICS_WAIT_LOG_INTERVAL_SEC" envDefault:"30"`

	RedisQueuePrefix   string `env:"REDIS_QUEUE_PREFIX" envDefault:"queue"`
	RedisResultPrefix  string `env:"REDIS_RESULT_PREFIX" envDefault:"results"`
	RedisFailedPrefix  string `env:"REDIS_FAILED_PREFIX" envDefault:"failed"`
	RedisSpikePrefix   string `env:"REDIS_SPIKE_PREFIX" envDefault:"spike"`
	SpikeHistoryTTLSec int    `env:"SPIKE_HISTORY_TTL_SEC" envDefault:"86400"`

	LLMSummaryMaxTokens int     `env:"LLM_SUMMARY_MAX_TOKENS" envDefault:"128"`
	LLMTimeoutSec       int     `env:"LLM_TIMEOUT_SEC" envDefault:"30"`
	LLMMinDelaySec      float64 `env:"LLM_MIN_DELAY_SEC" envDefault:"2"`
	LLMMaxConcurrency   int     `env:"LLM_MAX_CONCURRENCY" envDefault:"4"`

	EmbeddingsBatchSize   int `env:"EMBEDDINGS_BATCH_SIZE" envDefault:"32"`
	PreprocessingExamples int `env:"PREPROCESSING_EXAMPLES" envDefault:"3"`

	OTLPEndpoint    string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTELServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"brand-mention-worker"`
}

// Load parses environment variables into a Config and validates it. A missing
// WORKER_ID is filled with a generated "worker-<uuid>" identifier.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("op=config.Load: %w", err)
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces value ranges and the provider/credential coupling. It is
// called at startup; violations are fatal.
func (c Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("op=config.Validate: %s", "REDIS_URL must be set")
	}
	for name, ok := range map[string]bool{
		"CHUNK_BATCH_SIZE >= 1":              c.ChunkBatchSize >= 1,
		"MAX_RETRIES >= 0":                   c.MaxRetries >= 0,
		"RETRY_BACKOFF_BASE >= 0":            c.RetryBackoffBase >= 0,
		"PROMETHEUS_PORT >= 1":               c.PrometheusPort >= 1,
		"HTTP_PORT >= 1":                     c.HTTPPort >= 1,
		"HEARTBEAT_INTERVAL_SEC >= 1":        c.HeartbeatIntervalSec >= 1,
		"BLPOP_TIMEOUT_SEC >= 1":             c.BLPopTimeoutSec >= 1,
		"METRICS_WAIT_LOG_INTERVAL_SEC >= 1": c.MetricsWaitLogIntervalSec >= 1,
		"SPIKE_HISTORY_TTL_SEC >= 60":        c.SpikeHistoryTTLSec >= 60,
		"LLM_SUMMARY_MAX_TOKENS >= 16":       c.LLMSummaryMaxTokens >= 16,
		"LLM_TIMEOUT_SEC >= 1":               c.LLMTimeoutSec >= 1,
		"LLM_MIN_DELAY_SEC >= 0":             c.LLMMinDelaySec >= 0,
		"LLM_MAX_CONCURRENCY >= 1":           c.LLMMaxConcurrency >= 1,
		"EMBEDDINGS_BATCH_SIZE >= 1":         c.EmbeddingsBatchSize >= 1,
		"PREPROCESSING_EXAMPLES >= 1":        c.PreprocessingExamples >= 1,
	} {
		if !ok {
			return fmt.Errorf("op=config.Validate: %s", name)
		}
	}

	switch c.LLMProvider {
	case "mock":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("op=config.Validate: %s", "GEMINI_API_KEY must be set when LLM_PROVIDER is 'gemini'")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("op=config.Validate: %s", "OPENAI_API_KEY must be set when LLM_PROVIDER is 'openai'")
		}
	default:
		return fmt.Errorf("op=config.Validate: unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.EmbeddingsProvider {
	case "local":
	case "openai", "gemini":
		if c.EmbeddingAPIKey == "" {
			return fmt.Errorf("op=config.Validate: EMBEDDING_API_KEY must be set when EMBEDDINGS_PROVIDER is %q", c.EmbeddingsProvider)
		}
	default:
		return fmt.Errorf("op=config.Validate: unsupported EMBEDDINGS_PROVIDER %q", c.EmbeddingsProvider)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warning", "error", "critical":
	default:
		return fmt.Errorf("op=config.Validate: unsupported LOG_LEVEL %q", c.LogLevel)
	}
	return nil
}

// Command worker runs one brand-mention analysis worker: it drains per-brand
// chunk queues, runs the analytics pipeline, and serves health and metrics.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/embedding"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/llm"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/observability"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/queue"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/storage"
	"github.com/fairyhunter13/brand-mention-worker/internal/adapter/store/redisstore"
	"github.com/fairyhunter13/brand-mention-worker/internal/app"
	"github.com/fairyhunter13/brand-mention-worker/internal/config"
	"github.com/fairyhunter13/brand-mention-worker/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracing, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("tracing setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := redisstore.New(cfg)
	if err != nil {
		slog.Error("store setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	executor := llm.NewExecutor(cfg)
	llmAdapter, err := llm.NewAdapter(cfg, executor)
	if err != nil {
		slog.Error("LLM setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	embedder := embedding.ForProvider(cfg)
	clusterer := usecase.NewCosineClusterer(cfg.WorkerID)
	spikes := usecase.NewStatDetector(store, cfg.WorkerID)
	processor := usecase.NewProcessor(embedder, llmAdapter, clusterer, spikes, cfg)
	results := storage.New(store, cfg)
	consumer := queue.NewConsumer(store, cfg)
	svc := app.NewService(cfg, store, consumer, processor, results)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		slog.Error("worker start failed", slog.Any("error", err))
		os.Exit(1)
	}

	ln, err := app.ListenWithFallback(cfg.HTTPPort)
	if err != nil {
		slog.Error("HTTP listen failed", slog.Any("error", err))
		svc.Stop()
		os.Exit(1)
	}
	srv := &http.Server{Handler: app.NewRouter(svc), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", ln.Addr().String()))
		if serr := srv.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any("error", serr))
		}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown failed", slog.Any("error", err))
	}
	svc.Stop()
	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", slog.Any("error", err))
		}
	}
}

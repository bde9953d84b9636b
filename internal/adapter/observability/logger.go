package observability

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fairyhunter13/brand-mention-worker/internal/config"
)

// SetupLogger configures a JSON slog logger with service fields. The level
// comes from LOG_LEVEL; "critical" maps to error since slog has no level
// above it.
func SetupLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}
	h := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("worker_id", cfg.WorkerID),
	)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

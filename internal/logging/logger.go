package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithCorrelation returns a logger with a correlation ID attached.
// Use this for all logging within one query or one ingestion cycle so
// log lines can be stitched back together across components.
func WithCorrelation(correlationID string) *slog.Logger {
	return slog.With("correlation_id", correlationID)
}

// WithCycle returns a logger scoped to one ingestion cycle attempt.
func WithCycle(logger *slog.Logger, cycleID string, attempt int) *slog.Logger {
	return logger.With(
		"cycle_id", cycleID,
		"attempt", attempt,
	)
}

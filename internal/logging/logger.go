package logging

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"wxdata-server/internal/config"
)

// New builds the process logger: colored tint output for dev builds, JSON otherwise.
func New(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  cfg.LogLevel == slog.LevelDebug,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

// ForJob scopes a logger to one batch run.
func ForJob(logger *slog.Logger, job string, runID string) *slog.Logger {
	return logger.With("job", job, "run_id", runID)
}

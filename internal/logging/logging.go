package logging

import (
	"log/slog"
	"os"
)

// Init configures the default slog logger for the server (info by
// default).
func Init() {
	setup(slog.LevelInfo)
}

// InitQuiet configures logging for the CLI, where the terminal belongs
// to the meeting UI: errors only unless LOG_LEVEL says otherwise.
func InitQuiet() {
	setup(slog.LevelError)
}

func setup(level slog.Level) {
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

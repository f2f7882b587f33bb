// Package logging carries the platform-wide structured logger: JSON
// lines on stdout, level taken from configuration.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is what every component takes; it embeds slog.Logger so the
// usual Info/Warn/Error calls work directly.
type Logger struct {
	*slog.Logger
}

// New builds a JSON logger at the given level. Unknown or empty levels
// fall back to info so a misconfigured deploy still logs.
func New(level string) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return &Logger{Logger: slog.New(handler)}
}

// Default returns an info-level logger. Constructors use it when the
// caller passes nil.
func Default() *Logger {
	return New("info")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

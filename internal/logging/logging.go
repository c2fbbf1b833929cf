// Package logging configures the slog logger shared by romcatalog
// components.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration.
type Config struct {
	Format    string `yaml:"format"` // "json" or "text"
	Level     string `yaml:"level"`  // "debug", "info", "warn", "error"
	AddSource bool   `yaml:"add_source"`
}

// DefaultConfig returns the text format at info level.
func DefaultConfig() Config {
	return Config{
		Format: "text",
		Level:  "info",
	}
}

// redactedKeys are attribute keys whose values never reach the log.
var redactedKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"client_secret": true,
	"token":         true,
	"sessionid":     true,
}

var logger *slog.Logger

// Setup builds the process logger on stderr and makes it the slog default.
func Setup(cfg Config) *slog.Logger {
	logger = New(cfg, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w without touching the global default.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
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

// Get returns the logger installed by Setup, or slog's default.
func Get() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Component returns the process logger tagged with a component name.
func Component(name string) *slog.Logger {
	return Get().With("component", name)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

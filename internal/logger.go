package internal

import (
	"io"
	"log/slog"
	"strings"
)

// redactedKeys are attribute names whose values never reach the log.
var redactedKeys = map[string]bool{
	"authorization": true,
	"token":         true,
	"card_number":   true,
	"cvv":           true,
	"api_key":       true,
}

// NewLogger builds the application logger: text in development, JSON
// elsewhere. Unknown levels fall back to info. Every record carries
// service=labsnap, and credential attributes are masked.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", "labsnap")
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

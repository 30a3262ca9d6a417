// logging builds the slog loggers handed to the storage and db layers.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	// Level is one of DEBUG, INFO, WARN or ERROR. Empty disables logging.
	Level string
	// Format is json or text.
	Format string
	// Output is where records are written. Defaults to stderr.
	Output io.Writer
}

// New creates a logger from cfg. An empty level returns a logger that discards
// everything so library users see nothing unless they opt in.
func New(cfg Config) *slog.Logger {
	if cfg.Level == "" {
		return Discard()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level. Unknown names are INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

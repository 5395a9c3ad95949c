// Package logging builds the slog loggers used across the engine.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the handler encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type settings struct {
	format Format
	out    io.Writer
}

// Option configures a logger built by New.
type Option func(*settings)

// WithFormat selects text or JSON output. Unknown formats fall back to text.
func WithFormat(f Format) Option {
	return func(s *settings) { s.format = f }
}

// WithWriter redirects output. The default is stderr, which keeps stdout
// free for the stdio MCP transport and for command output.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.out = w
		}
	}
}

// New creates an application logger at level. The "error" attribute key is
// shortened to "err" so call sites can log either.
func New(level slog.Level, opts ...Option) *slog.Logger {
	s := settings{format: FormatText, out: os.Stderr}
	for _, opt := range opts {
		opt(&s)
	}
	ho := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == "error" {
				a.Key = "err"
			}
			return a
		},
	}
	if s.format == FormatJSON {
		return slog.New(slog.NewJSONHandler(s.out, ho))
	}
	return slog.New(slog.NewTextHandler(s.out, ho))
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

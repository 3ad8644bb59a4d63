// Package logging builds the process slog.Logger from the log config section.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iudanet/gophsync/internal/config"
)

// ParseLevel converts a level name to slog.Level.
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

// New creates a logger writing to cfg.File through a rotating writer, or to
// stderr when no file is set. Format "auto" picks text for an interactive
// terminal and json otherwise. The returned closer flushes the file writer.
func New(cfg config.LogConfig, stderr *os.File) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var (
		out      io.Writer = stderr
		closer   io.Closer = nopCloser{}
		terminal           = stderr != nil && term.IsTerminal(int(stderr.Fd()))
	)
	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out, closer, terminal = rotating, rotating, false
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format := strings.ToLower(cfg.Format); {
	case format == "text", format == "auto" && terminal:
		handler = slog.NewTextHandler(out, opts)
	case format == "json", format == "auto", format == "":
		handler = slog.NewJSONHandler(out, opts)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Package logging builds the process logger. The terminal belongs to the
// wrapped client, so records go to a rotating file or nowhere.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/Veraticus/sessionguard/pkg/config"
)

// Rotation settings used when Options leave them zero.
const (
	DefaultMaxSizeMB  = config.DefaultLogMaxSizeMB
	DefaultMaxBackups = config.DefaultLogMaxBackups
	DefaultMaxAgeDays = config.DefaultLogMaxAgeDays
)

// Options describe where and how much to log.
type Options struct {
	File       string // log file, rotated by lumberjack
	Level      string // debug, info, warn or error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	// Stderr logs to stderr when no file is configured.
	Stderr bool
}

// FromConfig maps the log section of the configuration.
func FromConfig(c config.LogConfig) Options {
	return Options{
		File:       c.File,
		Level:      c.Level,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// Logger is a slog.Logger tagged with a per-process session id.
type Logger struct {
	*slog.Logger
	SessionID string
	out       io.Writer
	closer    io.Closer
}

// New creates a logger for opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var (
		w      io.Writer
		closer io.Closer
	)
	switch {
	case opts.File != "":
		rot := &lj.Logger{
			Filename:   opts.File,
			MaxSize:    valOr(opts.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(opts.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(opts.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   opts.Compress,
		}
		w, closer = rot, rot
	case opts.Stderr:
		w = os.Stderr
	default:
		w = io.Discard
	}

	return newLogger(w, level, closer), nil
}

// NewWithWriter creates a logger writing text records to w.
func NewWithWriter(w io.Writer, level slog.Level) *Logger {
	return newLogger(w, level, nil)
}

func newLogger(w io.Writer, level slog.Level, closer io.Closer) *Logger {
	id := uuid.NewString()
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{
		Logger:    slog.New(h).With("session", id),
		SessionID: id,
		out:       w,
		closer:    closer,
	}
}

// Writer returns the destination records are written to.
func (l *Logger) Writer() io.Writer {
	return l.out
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// ParseLevel maps a level name to a slog.Level. An empty name is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

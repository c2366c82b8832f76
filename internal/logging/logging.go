// Package logging installs the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options selects the level, encoding and destination of log output.
// With File empty, logs go to stderr.
type Options struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int // rotate after this many megabytes (default 100)
	MaxBackups int // rotated files to keep (default 5)
}

// ParseLevel accepts debug, info, warn, warning and error in any case.
// An empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", s)
	}
}

// New builds a logger for opts. Output goes to stderr unless opts.File is
// set, in which case a rotating file is used and must be closed by the
// caller through the returned io.Closer.
func New(opts Options, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 100),
			MaxBackups: orDefault(opts.MaxBackups, 5),
			Compress:   true,
		}
		out = rotating
		closer = rotating
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, handlerOpts)
	case FormatText, "":
		handler = slog.NewTextHandler(out, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	return slog.New(handler), closer, nil
}

// Setup installs the logger described by opts as the slog default
func Setup(opts Options) (io.Closer, error) {
	logger, closer, err := New(opts, os.Stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

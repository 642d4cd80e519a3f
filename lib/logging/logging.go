// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

// Options configures New.
type Options struct {
	// Level is the minimum level written to Output: "debug", "info",
	// "warn", or "error". Empty means info.
	Level string

	// Output receives the primary log stream. Nil means os.Stderr.
	Output io.Writer

	// File, when non-empty, is opened in append mode and receives
	// every record at debug level as JSON.
	File string

	// ForceJSON selects the JSON handler even when Output is a
	// terminal.
	ForceJSON bool
}

// Logger is a slog.Logger paired with the debug file it writes to, if
// any. Close releases the file.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Close closes the debug log file. Safe to call when no file was
// configured.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps a configuration string to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a Logger from options.
func New(options Options) (*Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}

	output := options.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var primary slog.Handler
	if !options.ForceJSON && isTerminal(output) {
		primary = slog.NewTextHandler(output, handlerOptions)
	} else {
		primary = slog.NewJSONHandler(output, handlerOptions)
	}

	if options.File == "" {
		return &Logger{Logger: slog.New(primary)}, nil
	}

	if err := os.MkdirAll(filepath.Dir(options.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating debug log directory: %w", err)
	}
	file, err := os.OpenFile(options.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening debug log %s: %w", options.File, err)
	}
	debug := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &Logger{
		Logger: slog.New(fanout{primary, debug}),
		file:   file,
	}, nil
}

// Discard returns a logger that drops every record. Components fall
// back to it when constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// fanout delivers each record to every handler that accepts its level.
type fanout []slog.Handler

func (handlers fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanout) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (handlers fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanout, len(handlers))
	for i, handler := range handlers {
		derived[i] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanout) WithGroup(name string) slog.Handler {
	derived := make(fanout, len(handlers))
	for i, handler := range handlers {
		derived[i] = handler.WithGroup(name)
	}
	return derived
}

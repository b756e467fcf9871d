// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging provides structured logging for the bvmm tools.
//
// It wraps log/slog with the configuration the command line needs: a
// minimum level, text or JSON output and an optional JSON log file per day.
// Library packages take a plain *slog.Logger; obtain one with Slog().
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    Service: "bvmm",
//	})
//	defer logger.Close()
//
//	logger.Info("sampling started", "samples", 10000)
//
// # Thread Safety
//
// Logger is safe for concurrent use.
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
	"sync"
	"time"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for per-iteration progress and troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for run start and completion.
	LevelInfo

	// LevelWarn is for recoverable problems.
	LevelWarn

	// LevelError is for failed operations.
	LevelError
)

// ErrUnknownLevel is returned by ParseLevel for names it does not know.
var ErrUnknownLevel = errors.New("unknown log level")

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel converts a configuration string such as "debug" into a Level.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures the Logger. The zero value writes Info and above to
// stderr as text.
type Config struct {
	// Level sets the minimum log level.
	Level Level

	// LogDir enables an additional JSON log file named
	// "{Service}_{YYYY-MM-DD}.log" in this directory. A leading ~ expands
	// to the home directory.
	LogDir string

	// Service is attached to every entry as the "service" attribute.
	Service string

	// JSON switches the console output from text to JSON.
	JSON bool

	// Quiet disables console output.
	Quiet bool

	// Output replaces stderr as the console destination.
	Output io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger is a structured logger writing to the console and optionally to a
// file.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	mu     sync.Mutex
}

// New creates a Logger. The returned Logger must be closed when LogDir is
// set.
func New(config Config) *Logger {
	var handlers []slog.Handler
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	console := config.Output
	if console == nil {
		console = os.Stderr
	}
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(console, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(console, opts))
		}
	}

	logger := &Logger{config: config}

	if config.LogDir != "" {
		if file, err := openLogFile(config); err == nil {
			logger.file = file
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

func openLogFile(config Config) (*os.File, error) {
	dir := expandPath(config.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	service := config.Service
	if service == "" {
		service = "bvmm"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
}

// Default returns an Info-level text logger on stderr.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "bvmm"})
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs a message at Info level.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs a message at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs a message at Error level.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger that adds args to every entry. The child
// shares the log file of its parent.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
		file:   l.file,
	}
}

// Slog returns the underlying slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close syncs and closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	var errs []error
	if err := l.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync log file: %w", err))
	}
	if err := l.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log file: %w", err))
	}
	l.file = nil
	return errors.Join(errs...)
}

// =============================================================================
// Multi-Handler (Internal)
// =============================================================================

// multiHandler fans out log records to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

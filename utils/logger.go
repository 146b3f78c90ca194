package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, slog.LevelInfo)
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel converts debug/info/warn/error into a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s (expected: debug, info, warn, error)", level)
	}
}

// InitLogger replaces the package logger.
func InitLogger(w io.Writer, level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	logger = newLogger(w, lvl)
	mu.Unlock()
	return nil
}

// Log writes one structured record.
func Log(level slog.Level, module, operation, details string) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Log(context.Background(), level, details, "module", module, "operation", operation)
}

// Debug logs a debug message.
func Debug(module, operation, details string) {
	Log(slog.LevelDebug, module, operation, details)
}

// Info logs an informational message.
func Info(module, operation, details string) {
	Log(slog.LevelInfo, module, operation, details)
}

// Warn logs a warning message.
func Warn(module, operation, details string) {
	Log(slog.LevelWarn, module, operation, details)
}

// Error logs an error message.
func Error(module, operation, details string) {
	Log(slog.LevelError, module, operation, details)
}

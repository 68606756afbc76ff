// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// Log returns the shared logger. It discards everything until Init or Set
// is called so library users get no output unless they ask for it.
func Log() *slog.Logger {
	return current.Load()
}

// Set replaces the shared logger. It is safe to call while other
// goroutines are logging.
func Set(l *slog.Logger) {
	current.Store(l)
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to a slog level.
// Unknown strings map to INFO.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init replaces the shared logger with a text handler writing to w.
func Init(levelStr string, w io.Writer) {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}
	Set(slog.New(slog.NewTextHandler(w, opts)))
}

func Debug(msg string, args ...any) {
	Log().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Log().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Log().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Log().Error(msg, args...)
}

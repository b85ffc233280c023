// Package logger provides structured logging for the security engine.
//
// It wraps log/slog behind a small package-level API so callers never
// carry a logger instance around. Level and format can be reconfigured
// at runtime (e.g. from CLI flags or the config file).
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Config holds logger configuration.
type Config struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

var (
	currentLevel atomic.Int32 // stores a slog.Level

	mu      sync.RWMutex
	output  io.Writer = os.Stderr
	slogger *slog.Logger
)

func init() {
	currentLevel.Store(int32(slog.LevelInfo))
	rebuild("text")
}

// rebuild swaps the slog handler. Callers must hold mu or be in init.
func rebuild(format string) {
	opts := &slog.HandlerOptions{Level: slog.Level(currentLevel.Load())}
	if format == "json" {
		slogger = slog.New(slog.NewJSONHandler(output, opts))
	} else {
		slogger = slog.New(slog.NewTextHandler(output, opts))
	}
}

// Init configures the logger from a Config. Output can be "stdout",
// "stderr" or a file path.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file %q: %w", cfg.Output, err)
		}
		output = f
	}

	if cfg.Level != "" {
		currentLevel.Store(int32(parseLevel(cfg.Level)))
	}

	format := strings.ToLower(cfg.Format)
	if format != "json" {
		format = "text"
	}
	rebuild(format)
	return nil
}

// InitWithWriter points the logger at a custom writer. Primarily for tests.
func InitWithWriter(w io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	if level != "" {
		currentLevel.Store(int32(parseLevel(level)))
	}
	rebuild("text")
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
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

func get() *slog.Logger {
	mu.RLock()
	l := slogger
	mu.RUnlock()
	return l
}

// Debug logs at debug level with structured key/value fields.
func Debug(msg string, args ...any) {
	if slog.Level(currentLevel.Load()) > slog.LevelDebug {
		return
	}
	get().Debug(msg, args...)
}

// Info logs at info level with structured key/value fields.
func Info(msg string, args ...any) {
	if slog.Level(currentLevel.Load()) > slog.LevelInfo {
		return
	}
	get().Info(msg, args...)
}

// Warn logs at warn level with structured key/value fields.
func Warn(msg string, args ...any) {
	if slog.Level(currentLevel.Load()) > slog.LevelWarn {
		return
	}
	get().Warn(msg, args...)
}

// Error logs at error level with structured key/value fields.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

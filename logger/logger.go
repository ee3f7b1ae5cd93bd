// Package logger configures structured logging for ferment.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Level is a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config holds logger configuration.
type Config struct {
	Level   Level
	Format  string // "text" or "json"
	Output  io.Writer
	LogFile string
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Format: "text",
		Output: os.Stderr,
	}
}

var defaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Init builds the global logger from cfg and returns it.
func Init(cfg Config) (*slog.Logger, error) {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		output = file
	}

	opts := &slog.HandlerOptions{Level: toSlogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	return defaultLogger, nil
}

// LevelFor maps the CLI verbosity flags to a level.
func LevelFor(verbose, quiet bool) Level {
	switch {
	case quiet:
		return LevelError
	case verbose:
		return LevelDebug
	default:
		return LevelWarn
	}
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the global logger. It discards everything until Init is called.
func Get() *slog.Logger {
	return defaultLogger
}

// With returns the global logger with the given attributes.
func With(args ...any) *slog.Logger {
	return defaultLogger.With(args...)
}

// LogPhase logs the start of a generation phase.
func LogPhase(phase string, args ...any) {
	defaultLogger.Info("starting phase", append([]any{"phase", phase}, args...)...)
}

// LogPhaseComplete logs the completion of a generation phase.
func LogPhaseComplete(phase string, args ...any) {
	defaultLogger.Info("completed phase", append([]any{"phase", phase}, args...)...)
}

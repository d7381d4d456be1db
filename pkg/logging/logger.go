// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer

	// File, when set, receives a copy of every log line with size-based rotation.
	File string
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// LevelFromDebug resolves the level from the DEBUG toggle and an explicit
// LOG_LEVEL value. An explicit level wins.
func LevelFromDebug(debug bool, explicit string) LogLevel {
	if explicit != "" {
		return LogLevel(strings.ToLower(explicit))
	}
	if debug {
		return LevelDebug
	}
	return LevelInfo
}

// Setup configures the global zerolog logger.
// The returned closer flushes the rotated log file, if any.
func Setup(cfg Config) (zerolog.Logger, io.Closer) {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(out, rotator)
		closer = rotator
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	log.Logger = logger

	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: enabled by DEBUG=true, advisory only
//   - Cache freshness decisions (age, hit/miss reason)
//   - Provider request flow (endpoint, method)
//   - Snapshot comparison result
//
// Info: Normal operation events
//   - Payment link created
//   - Catalog change announced
//   - Server startup/shutdown
//
// Warn: Conditions that don't fail the request
//   - Provider 429 cool-down recorded
//   - Corrupt cached values ignored
//   - Change notification failed
//
// Error: Failed requests
//   - Reconciliation aborted (provider or store failure)
//   - Configuration errors
//
// Context Fields:
//   - component: emitting package
//   - endpoint: Square endpoint
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - variation_id: Square variation id
//   - event_id: change notification id

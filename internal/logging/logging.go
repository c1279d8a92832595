// Package logging configures the structured loggers used across apu-go.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				label, exists := levelNames[level]
				if !exists {
					label = level.String()
				}
				a.Value = slog.StringValue(label)
			}
			return a
		},
	})
}

// Init initializes the logging system with a structured JSON logger on stdout
// and installs it as the slog default.
func Init() {
	structuredLogger = slog.New(newHandler(os.Stdout, slog.LevelDebug))
	slog.SetDefault(structuredLogger)
}

// SetOutput redirects the structured logger output, e.g. for tests.
func SetOutput(w io.Writer, level slog.Level) {
	structuredLogger = slog.New(newHandler(w, level))
	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base.
// Returns nil if Init() has not been called.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return nil
	}
	return structuredLogger.With("service", serviceName)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs a trace message using the custom Trace level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// FileLoggerOptions control rotation of file loggers.
type FileLoggerOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func (o FileLoggerOptions) withDefaults() FileLoggerOptions {
	if o.MaxSizeMB <= 0 {
		o.MaxSizeMB = 100
	}
	if o.MaxBackups <= 0 {
		o.MaxBackups = 3
	}
	if o.MaxAgeDays <= 0 {
		o.MaxAgeDays = 28
	}
	return o
}

// lumberjack doesn't create directories
func ensureLogDir(filePath string) error {
	logDir := filepath.Dir(filePath)
	if logDir == "." {
		return nil
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}
	return nil
}

func newRotatingWriter(filePath string, opts FileLoggerOptions) *lumberjack.Logger {
	opts = opts.withDefaults()
	return &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
}

// InitFileOutput redirects the structured logger and the slog default to a
// rotated log file. It returns a close function for the underlying writer.
func InitFileOutput(filePath string, level slog.Level, opts FileLoggerOptions) (func() error, error) {
	if err := ensureLogDir(filePath); err != nil {
		return nil, err
	}
	logWriter := newRotatingWriter(filePath, opts)
	SetOutput(logWriter, level)
	return logWriter.Close, nil
}

// NewFileLogger creates a slog.Logger writing JSON logs to the given file,
// rotated by lumberjack. It returns the logger and a close function for the
// underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Level, opts FileLoggerOptions) (*slog.Logger, func() error, error) {
	if err := ensureLogDir(filePath); err != nil {
		return nil, nil, err
	}
	logWriter := newRotatingWriter(filePath, opts)
	logger := slog.New(newHandler(logWriter, level)).With("service", serviceName)
	return logger, logWriter.Close, nil
}

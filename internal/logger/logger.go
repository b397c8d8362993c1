// Package logger builds the process-wide slog logger: a tinted console
// handler for development, JSON with file rotation for production.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvProduction selects the JSON handler.
const EnvProduction = "production"

// Options configures the logger.
type Options struct {
	logToFile bool
	logFile   string
}

// Option mutates Options.
type Option func(*Options)

// WithLogToFile enables writing log output to a rotated file.
func WithLogToFile(enabled bool) Option {
	return func(o *Options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the log file path.
func WithLogFile(path string) Option {
	return func(o *Options) {
		o.logFile = path
	}
}

// New creates a logger for the given environment.
func New(env string, opts ...Option) *slog.Logger {
	options := Options{logFile: "logs/ortserve.log"}
	for _, opt := range opts {
		opt(&options)
	}

	var out io.Writer = os.Stderr
	if options.logToFile {
		rotated := &lumberjack.Logger{
			Filename:   options.logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotated)
	}

	if env == EnvProduction {
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return slog.New(tint.NewHandler(out, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.Kitchen,
	}))
}

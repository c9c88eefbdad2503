// Package logger builds the structured zap loggers used across the tap.
//
// The package keeps no global logger. Stdout carries the Singer message
// stream, so loggers are constructed once by the CLI (writing to stderr by
// default) and handed to every component that logs.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const (
	runIDKey ctxKey = iota
	streamKey
)

// Config selects the level, encoding and sinks of a logger.
type Config struct {
	Level string
	// Encoding is json or console.
	Encoding string
	// Console colors levels and adds stack traces to errors.
	Console bool
	Outputs []string
}

// DefaultConfig returns a json logger at info level writing to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Encoding: "json", Outputs: []string{"stderr"}}
}

// New builds a logger from cfg. Outputs default to stderr; stdout is
// reserved for Singer messages.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}
	if len(cfg.Outputs) == 0 {
		cfg.Outputs = []string{"stderr"}
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.MessageKey = "message"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.StringDurationEncoder
	var opts []zap.Option
	if cfg.Console {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = cfg.Encoding
	zc.EncoderConfig = enc
	zc.OutputPaths = cfg.Outputs
	zc.ErrorOutputPaths = []string{"stderr"}
	zc.Sampling = nil

	l, err := zc.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// WithRunID stores the run ID in ctx for WithContext.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithStream stores the stream ID in ctx for WithContext.
func WithStream(ctx context.Context, stream string) context.Context {
	return context.WithValue(ctx, streamKey, stream)
}

// WithContext returns base enriched with the run and stream stored in ctx.
// A nil base yields a no-op logger.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	var fields []zap.Field
	if id, ok := ctx.Value(runIDKey).(string); ok {
		fields = append(fields, zap.String("run_id", id))
	}
	if s, ok := ctx.Value(streamKey).(string); ok {
		fields = append(fields, zap.String("stream", s))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

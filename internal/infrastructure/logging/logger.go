// Package logging builds the zap loggers used across the service.
package logging

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
}

// New constructs a zap logger using the provided options.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "json" && format != "console" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	outputs := opts.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       opts.Development,
		DisableCaller:     !opts.Development && level > zapcore.DebugLevel,
		DisableStacktrace: !opts.Development,
		Encoding:          format,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores the HTTP request identifier on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request identifier stored on ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext returns logger annotated with the identifiers found on ctx.
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	if ctx == nil {
		return logger
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}

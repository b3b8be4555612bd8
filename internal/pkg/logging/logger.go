// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Lifecycle logs (startup, shutdown, workers) have no request trace and are
// stamped with these identifiers instead.
const (
	SystemTraceID = "system"
	SystemSpanID  = "system"
)

type Options struct {
	Service string
	Env     string
	// Level is a zap level name; empty means info.
	Level string
	// File, when set, receives a copy of every entry.
	File string
}

// NewLogger emits JSON to stdout (and File) with "ts", "msg" and lowercase
// levels, stamped with service and env.
func NewLogger(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		lvl, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level.SetLevel(lvl)
	}

	outputs := []string{"stdout"}
	if opts.File != "" {
		if err := prepareFile(opts.File); err != nil {
			return nil, fmt.Errorf("prepare log file %s: %w", opts.File, err)
		}
		outputs = append(outputs, opts.File)
	}

	cfg := zap.Config{
		Level:            level,
		Encoding:         "json",
		EncoderConfig:    encoderConfig(),
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
		Sampling:         &zap.SamplingConfig{Initial: 100, Thereafter: 100},
		InitialFields: map[string]any{
			"service": opts.Service,
			"env":     opts.Env,
		},
	}
	return cfg.Build()
}

func MustNewLogger(opts Options) *zap.Logger {
	logger, err := NewLogger(opts)
	if err != nil {
		panic(err)
	}
	return logger
}

// WithTrace binds trace_id and span_id; empty values become "unknown" so the
// fields are always present.
func WithTrace(logger *zap.Logger, traceID, spanID string) *zap.Logger {
	if logger == nil {
		logger = zap.L()
	}
	return logger.With(
		zap.String("trace_id", orUnknown(traceID)),
		zap.String("span_id", orUnknown(spanID)),
	)
}

// System stamps logger with the system trace identifiers.
func System(logger *zap.Logger) *zap.Logger {
	return WithTrace(logger, SystemTraceID, SystemSpanID)
}

func encoderConfig() zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.MessageKey = "msg"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	return ec
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func prepareFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

package zaplogger

import (
	"fmt"
	"time"

	"github.com/Zhima-Mochi/clubshop/internal/observability"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type logger struct{ l *zap.Logger }

// New adapts a zap logger to the observability port; fixed fields are bound once.
func New(l *zap.Logger, fixed ...observability.Field) observability.Logger {
	if l == nil {
		l = zap.NewNop()
	}
	if len(fixed) > 0 {
		l = l.With(zapFields(fixed)...)
	}
	return logger{l: l}
}

func (z logger) With(fields ...observability.Field) observability.Logger {
	if len(fields) == 0 {
		return z
	}
	return logger{l: z.l.With(zapFields(fields)...)}
}

func (z logger) Debug(msg string, fields ...observability.Field) { z.write(zapcore.DebugLevel, msg, fields) }
func (z logger) Info(msg string, fields ...observability.Field)  { z.write(zapcore.InfoLevel, msg, fields) }
func (z logger) Warn(msg string, fields ...observability.Field)  { z.write(zapcore.WarnLevel, msg, fields) }
func (z logger) Error(msg string, fields ...observability.Field) { z.write(zapcore.ErrorLevel, msg, fields) }

// write converts fields only for entries the core will keep.
func (z logger) write(lvl zapcore.Level, msg string, fields []observability.Field) {
	if ce := z.l.Check(lvl, msg); ce != nil {
		ce.Write(zapFields(fields)...)
	}
}

func zapFields(fs []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fs))
	for _, f := range fs {
		switch v := f.Value.(type) {
		case nil:
			out = append(out, zap.Skip())
		case error:
			out = append(out, zap.NamedError(f.Key, v))
		case time.Duration:
			out = append(out, zap.Duration(f.Key, v))
		case time.Time:
			out = append(out, zap.Time(f.Key, v))
		case fmt.Stringer:
			out = append(out, zap.Stringer(f.Key, v))
		default:
			out = append(out, zap.Any(f.Key, v))
		}
	}
	return out
}

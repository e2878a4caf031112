// Package logadapter attaches the propagated trace id and Cloud Logging
// severities to services whose log sink is zap or logrus instead of the
// zerolog-based logging package.
package logadapter

import (
	"context"

	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type traceCore struct {
	zapcore.Core
	observer *tracectx.Observer
}

// WrapZapCore returns a zap option adding the trace field to every entry
// written on a traced execution node. A nil observer means the default one.
func WrapZapCore(o *tracectx.Observer) zap.Option {
	if o == nil {
		o = tracectx.Default()
	}
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return &traceCore{Core: c, observer: o}
	})
}

func (c *traceCore) With(fields []zapcore.Field) zapcore.Core {
	return &traceCore{Core: c.Core.With(fields), observer: c.observer}
}

func (c *traceCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write runs on the goroutine that logged the entry.
func (c *traceCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	for _, f := range fields {
		if f.Key == logging.TraceID {
			return c.Core.Write(ent, fields)
		}
	}
	if id, ok := c.observer.GetTraceContext(); ok {
		fields = append(fields[:len(fields):len(fields)], zap.String(logging.TraceID, id))
	}
	return c.Core.Write(ent, fields)
}

// TraceField returns the trace field for ctx, falling back to the current
// node. It is a no-op field when no trace id is visible. Use it from
// goroutines that were not spawned through the Observer.
func TraceField(ctx context.Context) zap.Field {
	if id, ok := tracectx.FromContext(ctx); ok {
		return zap.String(logging.TraceID, id)
	}
	return zap.Skip()
}

// EncoderConfig is a zap JSON encoder configuration in the Cloud Logging
// layout: message, severity and time keys with Cloud Logging severity names.
func EncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       logging.SeverityField,
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     logging.Message,
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeSeverity,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// ZapSeverity maps a zap level onto the Cloud Logging severity.
func ZapSeverity(l zapcore.Level) logging.Severity {
	switch l {
	case zapcore.DebugLevel:
		return logging.SeverityDebug
	case zapcore.InfoLevel:
		return logging.SeverityInfo
	case zapcore.WarnLevel:
		return logging.SeverityWarning
	case zapcore.ErrorLevel:
		return logging.SeverityError
	case zapcore.DPanicLevel:
		return logging.SeverityCritical
	case zapcore.PanicLevel:
		return logging.SeverityAlert
	case zapcore.FatalLevel:
		return logging.SeverityEmergency
	default:
		return logging.SeverityDefault
	}
}

func encodeSeverity(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(ZapSeverity(l).String())
}

// NewZap builds a JSON zap logger writing to ws at level and above, with the
// trace field attached from o.
func NewZap(ws zapcore.WriteSyncer, level zapcore.Level, o *tracectx.Observer) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(EncoderConfig()), ws, level)
	return zap.New(core, WrapZapCore(o))
}

package logging

import (
	"context"
	"sync"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/rs/zerolog"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

const loggerContextKey = contextKey("cqtrace.logger")

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default returns the process-wide logger used when a context carries none.
// It writes JSON to stdout at INFO and above.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLogger = New(defaultLogConfig())
	})
	return defaultLogger
}

// defaultLogConfig returns a default log configuration.
func defaultLogConfig() config.LogConfig {
	return config.LogConfig{
		Level:                  "info",
		Format:                 "json",
		Output:                 "stdout",
		ExcludeKeys:            config.DefaultExcludeKeys,
		MaxFieldLengthForError: 4000,
		SkipPaths:              config.DefaultSkipPaths,
	}
}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts a logger from the context, falling back to Default.
// Events of the returned logger read the trace id from ctx.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(loggerContextKey).(*Logger)
	if !ok {
		logger = Default()
	}
	return logger.WithContext(ctx)
}

// Ctx returns the zerolog logger for ctx. This is a convenience for code that
// writes zerolog events directly; those events carry the trace id but no
// severity field.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx).GetZerolog()
}

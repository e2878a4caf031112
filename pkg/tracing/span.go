package tracing

import (
	"context"

	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/Combine-Capital/cqtrace"

	// AttrTraceContext is the span attribute holding the request's trace
	// context value.
	AttrTraceContext = "gcp.trace_context"
	// AttrTraceID is the trace id part of a Cloud Trace header value.
	AttrTraceID = "gcp.trace_id"
)

// StartSpan starts a span named name. The span carries the trace context
// value visible in ctx, so spans started on spawned goroutines can be matched
// to their request's log lines.
//
//	ctx, span := tracing.StartSpan(ctx, "publish-job")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return StartSpanWithTracer(ctx, instrumentationName, name, opts...)
}

// StartSpanWithTracer is StartSpan with a named tracer.
func StartSpanWithTracer(ctx context.Context, tracerName, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if attrs := TraceAttributes(ctx); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// TraceAttributes returns the span attributes describing the trace context
// visible in ctx, or nil when there is none.
func TraceAttributes(ctx context.Context) []attribute.KeyValue {
	value, ok := tracectx.FromContext(ctx)
	if !ok {
		return nil
	}
	attrs := []attribute.KeyValue{attribute.String(AttrTraceContext, value)}
	if tc, ok := ParseCloudTraceContext(value); ok {
		attrs = append(attrs, attribute.String(AttrTraceID, tc.TraceID))
	}
	return attrs
}

// SpanFromContext returns the span in ctx, or a no-op span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError records err on the span in ctx and marks it failed.
func SetSpanError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddSpanEvent adds a timestamped event to the span in ctx.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// HTTPAttributes describes a finished server request.
func HTTPAttributes(method, path, host string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.route", path),
		attribute.String("http.host", host),
		attribute.Int("http.status_code", statusCode),
	}
}

// DatabaseAttributes describes one statement; QueryLogger attaches them to a
// db.query event.
func DatabaseAttributes(system, operation, statement string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
		attribute.String("db.statement", statement),
	}
}

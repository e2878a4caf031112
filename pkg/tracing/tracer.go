// Package tracing ties OpenTelemetry spans to the tracectx trace context.
// Spans are exported over OTLP gRPC, OTLP HTTP or to stdout. The global
// propagator writes W3C traceparent and the Cloud Trace header, so a
// downstream call sees the request's trace id either way.
//
//	cfg := config.TracingConfig{
//	    Enabled:    true,
//	    Endpoint:   "localhost:4317",
//	    SampleRate: 0.1,
//	    ExportMode: "grpc",
//	}
//	tp, shutdown, err := tracing.NewTracerProvider(ctx, cfg, "jobs-api")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shutdown(ctx)
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	exportGRPC   = "grpc"
	exportHTTP   = "http"
	exportStdout = "stdout"

	defaultBatchTimeout    = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// ShutdownFunc flushes pending spans and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// stdoutWriter receives stdout exports; tests swap it.
var stdoutWriter io.Writer = os.Stdout

// NewTracerProvider builds the provider for serviceName (cfg.ServiceName
// wins when set) and installs it globally along with Propagator(""). A
// disabled cfg yields an exporter-less provider and leaves globals alone.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig, serviceName string) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		return sdktrace.NewTracerProvider(), func(context.Context) error { return nil }, nil
	}
	if cfg.ServiceName != "" {
		serviceName = cfg.ServiceName
	}
	if serviceName == "" {
		return nil, nil, fmt.Errorf("service name is required for tracing")
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := newResource(ctx, serviceName, cfg.Environment)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	batch := cfg.BatchTimeout
	if batch <= 0 {
		batch = defaultBatchTimeout
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(batch)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(Propagator(""))

	return tp, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

func newExporter(ctx context.Context, cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	mode := cfg.ExportMode
	if mode == "" {
		mode = exportGRPC
	}
	if mode != exportStdout && cfg.Endpoint == "" {
		return nil, fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch mode {
	case exportGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		exp, err = otlptracegrpc.New(ctx, opts...)
	case exportHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err = otlptracehttp.New(ctx, opts...)
	case exportStdout:
		exp, err = stdouttrace.New(stdouttrace.WithWriter(stdoutWriter))
	default:
		return nil, fmt.Errorf("unsupported export mode: %s (use 'grpc', 'http' or 'stdout')", mode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}
	return exp, nil
}

func newResource(ctx context.Context, serviceName, env string) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if env != "" {
		attrs = append(attrs, attribute.String("deployment.environment", env))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
	)
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	}
	return sdktrace.TraceIDRatioBased(rate)
}

// Propagator is the composite installed by NewTracerProvider: W3C trace
// context, baggage, and the Cloud Trace header named header (default when
// empty).
func Propagator(header string) propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
		CloudTracePropagator{Header: header},
	)
}

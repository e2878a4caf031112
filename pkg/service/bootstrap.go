package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	cqerrors "github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/health"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/metrics"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/Combine-Capital/cqtrace/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
)

// Bootstrap holds the process-wide components built from a Config.
type Bootstrap struct {
	Config         *config.Config
	Logger         *logging.Logger
	Observer       *tracectx.Observer
	TracerProvider *sdktrace.TracerProvider
	Health         *health.Health

	metrics bool
	cleanup []func(context.Context) error
}

// BootstrapOption configures NewBootstrap.
type BootstrapOption func(*bootstrapOptions)

type bootstrapOptions struct {
	skipMetrics bool
	skipTracing bool
	observer    *tracectx.Observer
	logWriter   io.Writer
}

// WithoutMetrics skips metrics even when enabled in the config.
func WithoutMetrics() BootstrapOption {
	return func(o *bootstrapOptions) { o.skipMetrics = true }
}

// WithoutTracing skips the tracer provider even when enabled in the config.
func WithoutTracing() BootstrapOption {
	return func(o *bootstrapOptions) { o.skipTracing = true }
}

// WithBootstrapObserver uses o instead of tracectx.Default().
func WithBootstrapObserver(o *tracectx.Observer) BootstrapOption {
	return func(opts *bootstrapOptions) { opts.observer = o }
}

// WithLogWriter sends log output to w instead of cfg.Log.Output.
func WithLogWriter(w io.Writer) BootstrapOption {
	return func(o *bootstrapOptions) { o.logWriter = w }
}

// NewBootstrap builds the logger, metrics registry with the trace collector,
// and tracer provider described by cfg. On error everything built so far is
// released.
func NewBootstrap(ctx context.Context, cfg *config.Config, opts ...BootstrapOption) (*Bootstrap, error) {
	var o bootstrapOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.observer == nil {
		o.observer = tracectx.Default()
	}

	logOpts := []logging.Option{logging.WithObserver(o.observer)}
	if o.logWriter != nil {
		logOpts = append(logOpts, logging.WithWriter(o.logWriter))
	}

	b := &Bootstrap{
		Config:   cfg,
		Observer: o.observer,
		Logger:   logging.New(cfg.Log, logOpts...).WithServiceName(cfg.Service.Name),
	}
	b.Health = health.New(health.WithObserver(o.observer))

	b.Logger.Info().
		Str("version", cfg.Service.Version).
		Str("env", cfg.Service.Env).
		Msg("service starting")

	if !o.skipMetrics && cfg.Metrics.Enabled {
		if err := b.initMetrics(); err != nil {
			_ = b.Cleanup(ctx)
			return nil, err
		}
	}

	if !o.skipTracing && cfg.Tracing.Enabled {
		name := cfg.Service.Name
		if cfg.Tracing.ServiceName != "" {
			name = cfg.Tracing.ServiceName
		}
		tp, shutdown, err := tracing.NewTracerProvider(ctx, cfg.Tracing, name)
		if err != nil {
			_ = b.Cleanup(ctx)
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		b.TracerProvider = tp
		b.AddCleanup(shutdown)
		b.Logger.Info().
			Str("endpoint", cfg.Tracing.Endpoint).
			Str("export_mode", cfg.Tracing.ExportMode).
			Float64("sample_rate", cfg.Tracing.SampleRate).
			Msg("tracing initialized")
	}

	return b, nil
}

func (b *Bootstrap) initMetrics() error {
	cfg := b.Config.Metrics
	if err := metrics.Init(cfg); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	b.AddCleanup(metrics.Shutdown)

	err := metrics.Register(metrics.NewTraceCollector(cfg.Namespace, b.Observer))
	var already prometheus.AlreadyRegisteredError
	if err != nil && !errors.As(err, &already) {
		return fmt.Errorf("failed to register trace collector: %w", err)
	}
	if err := metrics.InitStandardMetrics(cfg.Namespace); err != nil {
		return fmt.Errorf("failed to initialize request metrics: %w", err)
	}

	b.metrics = true
	b.Logger.Info().Int("port", cfg.Port).Str("path", cfg.Path).Msg("metrics initialized")
	return nil
}

// Context returns ctx carrying the bootstrap logger.
func (b *Bootstrap) Context(ctx context.Context) context.Context {
	return logging.WithLogger(ctx, b.Logger)
}

// bridgeOptions reads the trace header from the config.
func (b *Bootstrap) bridgeOptions() []tracectx.BridgeOption {
	return []tracectx.BridgeOption{
		tracectx.WithHeader(b.Config.Trace.Header),
		tracectx.WithObserver(b.Observer),
	}
}

// HTTPHandler wraps h in the request chain, outermost first: trace header
// bridge, server span, request log, request metrics, panic recovery.
func (b *Bootstrap) HTTPHandler(h http.Handler) http.Handler {
	h = cqerrors.RecoveryMiddleware(nil)(h)
	if b.metrics {
		h = metrics.HTTPMiddleware(b.Config.Metrics.Namespace)(h)
	}
	h = logging.RequestLogger(b.Logger)(h)
	h = tracing.HTTPMiddleware(b.Config.Service.Name)(h)
	return tracectx.HTTPMiddleware(b.bridgeOptions()...)(h)
}

// GRPCServerOptions returns the interceptor chain matching HTTPHandler.
func (b *Bootstrap) GRPCServerOptions() []grpc.ServerOption {
	unary := []grpc.UnaryServerInterceptor{
		tracectx.UnaryServerInterceptor(b.bridgeOptions()...),
		tracing.GRPCUnaryServerInterceptor(b.Config.Service.Name),
		logging.UnaryServerInterceptor(b.Logger),
	}
	stream := []grpc.StreamServerInterceptor{
		tracectx.StreamServerInterceptor(b.bridgeOptions()...),
		tracing.GRPCStreamServerInterceptor(b.Config.Service.Name),
		logging.StreamServerInterceptor(b.Logger),
	}
	if b.metrics {
		unary = append(unary, metrics.UnaryServerInterceptor(b.Config.Metrics.Namespace))
		stream = append(stream, metrics.StreamServerInterceptor(b.Config.Metrics.Namespace))
	}
	unary = append(unary, cqerrors.UnaryServerInterceptor(nil))
	stream = append(stream, cqerrors.StreamServerInterceptor(nil))

	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	}
}

// AddCleanup registers fn to run on Cleanup. Cleanups run in reverse order.
func (b *Bootstrap) AddCleanup(fn func(context.Context) error) {
	b.cleanup = append(b.cleanup, fn)
}

// Cleanup runs every registered cleanup, logging failures, and returns the
// first error.
func (b *Bootstrap) Cleanup(ctx context.Context) error {
	var first error
	for i := len(b.cleanup) - 1; i >= 0; i-- {
		if err := b.cleanup[i](ctx); err != nil {
			b.Logger.Error().Err(err).Msg("cleanup failed")
			if first == nil {
				first = err
			}
		}
	}
	b.cleanup = nil
	return first
}

package tracing

import (
	"context"
	"net/http"
	"time"

	"github.com/Combine-Capital/cqtrace/internal/httpstatus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HTTPMiddleware starts a server span for each request. Incoming W3C and
// Cloud Trace headers are extracted first, so the span joins the caller's
// trace and carries the request's trace context value.
//
// Install it inside tracectx.HTTPMiddleware so that a generated trace id is
// visible as well:
//
//	handler := tracectx.HTTPMiddleware()(tracing.HTTPMiddleware("jobs-api")(mux))
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := ExtractHTTP(r.Context(), r.Header)

			ctx, span := StartSpanWithTracer(ctx, serviceName, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("http.client_ip", r.RemoteAddr),
				),
			)
			defer span.End()

			rec := httpstatus.Wrap(w)

			start := time.Now()
			next.ServeHTTP(rec, r.WithContext(ctx))

			span.SetAttributes(HTTPAttributes(r.Method, r.URL.Path, r.Host, rec.Status())...)
			span.SetAttributes(attribute.Int64("http.response_time_ms", time.Since(start).Milliseconds()))
			if rec.Status() >= 500 {
				span.SetStatus(codes.Error, http.StatusText(rec.Status()))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}

// GRPCUnaryServerInterceptor starts a server span for each unary call.
//
//	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
//	    tracectx.UnaryServerInterceptor(),
//	    tracing.GRPCUnaryServerInterceptor("jobs-api"),
//	))
func GRPCUnaryServerInterceptor(serviceName string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		ctx, span := startRPCSpan(ctx, serviceName, info.FullMethod)
		defer span.End()

		start := time.Now()
		resp, err := handler(ctx, req)
		endRPCSpan(span, start, err)
		return resp, err
	}
}

// GRPCStreamServerInterceptor starts a server span for each streaming call.
func GRPCStreamServerInterceptor(serviceName string) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, span := startRPCSpan(ss.Context(), serviceName, info.FullMethod,
			attribute.Bool("rpc.grpc.is_server_stream", info.IsServerStream),
			attribute.Bool("rpc.grpc.is_client_stream", info.IsClientStream),
		)
		defer span.End()

		start := time.Now()
		err := handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})
		endRPCSpan(span, start, err)
		return err
	}
}

func startRPCSpan(ctx context.Context, serviceName, method string, extra ...attribute.KeyValue) (context.Context, trace.Span) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		ctx = ExtractGRPC(ctx, &md)
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("rpc.system", "grpc"),
		attribute.String("rpc.service", serviceName),
		attribute.String("rpc.method", method),
	}, extra...)
	return StartSpanWithTracer(ctx, serviceName, method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
}

func endRPCSpan(span trace.Span, start time.Time, err error) {
	span.SetAttributes(attribute.Int64("rpc.duration_ms", time.Since(start).Milliseconds()))
	if err == nil {
		span.SetAttributes(attribute.Int("rpc.grpc.status_code", 0))
		span.SetStatus(codes.Ok, "")
		return
	}
	if s, ok := status.FromError(err); ok {
		span.SetAttributes(
			attribute.Int("rpc.grpc.status_code", int(s.Code())),
			attribute.String("rpc.grpc.status_message", s.Message()),
		)
		span.SetStatus(codes.Error, s.Message())
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}

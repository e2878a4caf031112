package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Combine-Capital/cqtrace/internal/httpstatus"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

func initOrWarn(namespace string) {
	if err := InitStandardMetrics(namespace); err != nil {
		logging.Default().Warn().Err(err).Str(logging.Component, "metrics").Msg("failed to initialize standard metrics")
	}
}

// HTTPMiddleware records request count and duration by method, path and
// status.
func HTTPMiddleware(namespace string) func(http.Handler) http.Handler {
	initOrWarn(namespace)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := httpstatus.Wrap(w)

			next.ServeHTTP(rec, r)

			statusCode := strconv.Itoa(rec.Status())
			if httpRequestDuration != nil {
				httpRequestDuration.Observe(time.Since(start).Seconds(), r.Method, r.URL.Path, statusCode)
			}
			if httpRequestCount != nil {
				httpRequestCount.Inc(r.Method, r.URL.Path, statusCode)
			}
		})
	}
}

// UnaryServerInterceptor records gRPC call count and duration.
func UnaryServerInterceptor(namespace string) grpc.UnaryServerInterceptor {
	initOrWarn(namespace)

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observeGRPC(info.FullMethod, start, err)
		return resp, err
	}
}

// StreamServerInterceptor records gRPC stream count and duration.
func StreamServerInterceptor(namespace string) grpc.StreamServerInterceptor {
	initOrWarn(namespace)

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		observeGRPC(info.FullMethod, start, err)
		return err
	}
}

func observeGRPC(method string, start time.Time, err error) {
	code := grpcStatusCode(err)
	if grpcCallDuration != nil {
		grpcCallDuration.Observe(time.Since(start).Seconds(), method, code)
	}
	if grpcCallCount != nil {
		grpcCallCount.Inc(method, code)
	}
}

// grpcStatusCode returns the status code name for err, "OK" for nil.
func grpcStatusCode(err error) string {
	switch {
	case err == nil:
		return "OK"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	case errors.Is(err, context.DeadlineExceeded):
		return "DEADLINE_EXCEEDED"
	case errors.Is(err, io.EOF):
		return "UNAVAILABLE"
	}
	if st, ok := status.FromError(err); ok {
		return st.Code().String()
	}
	return "UNKNOWN"
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/Combine-Capital/cqtrace/internal/httpstatus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

const (
	excludedValue = "[EXCLUDED]"

	// maxLoggedBody caps how much of a request body is read for logging.
	maxLoggedBody = 64 << 10
)

// Request body keys never written to the request log.
var excludedBodyKeys = map[string]struct{}{
	"file":   {},
	"resume": {},
}

// RequestLogger is HTTP middleware that writes one line per request after the
// handler has finished. The message is the request path, followed by the
// GraphQL operation name when the body names one. Severity is ERROR for 5xx
// responses, WARNING for 4xx and INFO otherwise. Paths listed in the logger's
// SkipPaths are not logged.
//
// Install it inside the trace middleware so the line carries the request's
// trace id.
func RequestLogger(logger *Logger) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(logger.cfg.SkipPaths))
	for _, p := range logger.cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			body := readBody(r)

			ctx := WithLogger(r.Context(), logger)
			r = r.WithContext(ctx)

			rec := httpstatus.Wrap(w)
			next.ServeHTTP(rec, r)

			ms, latency := since(start)
			httpRequest := map[string]interface{}{
				"remoteIp":      remoteIP(r),
				"requestUrl":    r.URL.RequestURI(),
				"requestMethod": r.Method,
				"status":        rec.Status(),
				"userAgent":     r.UserAgent(),
				"referer":       r.Referer(),
				"latency":       latency,
			}
			if r.Pattern != "" {
				httpRequest["path"] = r.Pattern
			}
			for header, field := range map[string]string{
				"release":          "release",
				"transaction-id":   "transactionId",
				"transaction-name": "transactionName",
			} {
				if v := r.Header.Get(header); v != "" {
					httpRequest[field] = v
				}
			}

			payload := map[string]interface{}{
				HTTPRequest:   httpRequest,
				"query":       queryMap(r),
				"requestTime": ms,
			}
			message := r.URL.Path
			if body != nil {
				payload["reqBody"] = body
				if op, ok := body["operationName"].(string); ok && op != "" {
					message += " " + op
				}
			}

			logger.LogContext(ctx, statusSeverity(rec.Status()), message, payload)
		})
	}
}

func statusSeverity(status int) Severity {
	switch {
	case status >= 500:
		return SeverityError
	case status >= 400:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// readBody decodes a JSON request body for logging and restores it for the
// handler. Bodies that are not JSON objects are not logged.
func readBody(r *http.Request) map[string]interface{} {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), r.Body), r.Body}
	if err != nil || len(raw) > maxLoggedBody {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	excludeBodyKeys(body)
	return body
}

func excludeBodyKeys(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		for k, child := range x {
			if _, ok := excludedBodyKeys[k]; ok {
				x[k] = excludedValue
				continue
			}
			x[k] = excludeBodyKeys(child)
		}
	case []interface{}:
		for i, child := range x {
			x[i] = excludeBodyKeys(child)
		}
	}
	return v
}

func queryMap(r *http.Request) map[string]interface{} {
	q := r.URL.Query()
	out := make(map[string]interface{}, len(q))
	for k, values := range q {
		if len(values) == 1 {
			out[k] = values[0]
		} else {
			out[k] = values
		}
	}
	return out
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// UnaryServerInterceptor returns a gRPC unary server interceptor that logs RPC calls.
// It logs:
// - RPC start (method)
// - RPC end (method, status, duration)
func UnaryServerInterceptor(logger *Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		ctx = WithLogger(ctx, logger)

		logger.Debug().Ctx(ctx).
			Str(Method, info.FullMethod).
			Msg("grpc call started")

		resp, err := handler(ctx, req)
		logRPC(ctx, logger, info.FullMethod, start, err, "grpc call completed")

		return resp, err
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that logs stream operations.
func StreamServerInterceptor(logger *Logger) grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		ctx := WithLogger(ss.Context(), logger)

		wrapped := &wrappedServerStream{
			ServerStream: ss,
			ctx:          ctx,
		}

		logger.Debug().Ctx(ctx).
			Str(Method, info.FullMethod).
			Bool("is_client_stream", info.IsClientStream).
			Bool("is_server_stream", info.IsServerStream).
			Msg("grpc stream started")

		err := handler(srv, wrapped)
		logRPC(ctx, logger, info.FullMethod, start, err, "grpc stream completed")

		return err
	}
}

func logRPC(ctx context.Context, logger *Logger, method string, start time.Time, err error, msg string) {
	event := logger.Info()
	if err != nil {
		st, _ := status.FromError(err)
		event = logger.Error().
			Str(Error, err.Error()).
			Str("grpc_code", st.Code().String())
	}
	event.Ctx(ctx).
		Str(Method, method).
		Int64(Duration, time.Since(start).Milliseconds()).
		Msg(msg)
}

// wrappedServerStream wraps grpc.ServerStream to provide enriched context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

package tracectx

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// DefaultHeader is the inbound header read by the Bridge unless overridden.
const DefaultHeader = "x-cloud-trace-context"

// Bridge seeds trace context for inbound requests. It runs once per request,
// before any handler code.
type Bridge struct {
	observer *Observer
	header   string
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithHeader sets the header the trace id is read from. Empty names are ignored.
func WithHeader(name string) BridgeOption {
	return func(b *Bridge) {
		if name != "" {
			b.header = name
		}
	}
}

// WithObserver binds the Bridge to o instead of the default Observer.
func WithObserver(o *Observer) BridgeOption {
	return func(b *Bridge) {
		if o != nil {
			b.observer = o
		}
	}
}

// NewBridge creates a Bridge reading DefaultHeader on the default Observer.
func NewBridge(opts ...BridgeOption) *Bridge {
	b := &Bridge{
		observer: defaultObserver,
		header:   DefaultHeader,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Header returns the header name the Bridge reads.
func (b *Bridge) Header() string {
	return b.header
}

// Begin opens a scope on the calling goroutine and starts a trace from the
// inbound header values. The first value is used as-is, even when it is
// empty; only a missing header generates a fresh id. The returned context
// carries the trace id as well. end must be called on the same goroutine once
// the request has been handled.
func (b *Bridge) Begin(ctx context.Context, values []string) (context.Context, string, func()) {
	scope := b.observer.Enter()
	var traceID string
	if len(values) > 0 {
		traceID = b.observer.seed(CurrentNode(), values[0])
	} else {
		traceID = b.observer.Start("")
	}
	return NewContext(ctx, traceID), traceID, scope.Exit
}

// HTTPMiddleware returns net/http middleware that starts a trace for every
// request from the configured header.
func HTTPMiddleware(opts ...BridgeOption) func(http.Handler) http.Handler {
	b := NewBridge(opts...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, _, end := b.Begin(r.Context(), r.Header.Values(b.header))
			defer end()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GinMiddleware is the gin equivalent of HTTPMiddleware.
func GinMiddleware(opts ...BridgeOption) gin.HandlerFunc {
	b := NewBridge(opts...)
	return func(c *gin.Context) {
		ctx, _, end := b.Begin(c.Request.Context(), c.Request.Header.Values(b.header))
		defer end()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// UnaryServerInterceptor starts a trace for every unary RPC from the
// configured incoming metadata key.
func UnaryServerInterceptor(opts ...BridgeOption) grpc.UnaryServerInterceptor {
	b := NewBridge(opts...)
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		ctx, _, end := b.Begin(ctx, metadataValues(ctx, b.header))
		defer end()
		return handler(ctx, req)
	}
}

// StreamServerInterceptor starts a trace for every streaming RPC.
func StreamServerInterceptor(opts ...BridgeOption) grpc.StreamServerInterceptor {
	b := NewBridge(opts...)
	return func(
		srv interface{},
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, _, end := b.Begin(ss.Context(), metadataValues(ss.Context(), b.header))
		defer end()
		return handler(srv, &tracedServerStream{ServerStream: ss, ctx: ctx})
	}
}

func metadataValues(ctx context.Context, key string) []string {
	md, _ := metadata.FromIncomingContext(ctx)
	return md.Get(key)
}

type tracedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedServerStream) Context() context.Context {
	return s.ctx
}

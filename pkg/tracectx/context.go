package tracectx

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying traceID.
func NewContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, contextKey{}, traceID)
}

// FromContext returns the trace id stored in ctx. When ctx carries none it
// falls back to the calling goroutine's node in the default Observer.
func FromContext(ctx context.Context) (string, bool) {
	return defaultObserver.FromContext(ctx)
}

// FromContext returns the trace id stored in ctx, falling back to the calling
// goroutine's node in o.
func (o *Observer) FromContext(ctx context.Context) (string, bool) {
	if ctx != nil {
		if traceID, ok := ctx.Value(contextKey{}).(string); ok && traceID != "" {
			return traceID, true
		}
	}
	return o.GetTraceContext()
}

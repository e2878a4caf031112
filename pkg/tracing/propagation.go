package tracing

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"google.golang.org/grpc/metadata"
)

// CloudTracePropagator carries the trace context value in a single header.
// Extract stores the header value in the context with tracectx.NewContext;
// Inject writes the value visible through tracectx.FromContext, so calls made
// from any goroutine of a traced request forward its trace id.
type CloudTracePropagator struct {
	// Header is the header name. Empty means tracectx.DefaultHeader.
	Header string
}

var _ propagation.TextMapPropagator = CloudTracePropagator{}

func (p CloudTracePropagator) header() string {
	if p.Header == "" {
		return tracectx.DefaultHeader
	}
	return p.Header
}

// Inject sets the header from the trace id visible in ctx.
func (p CloudTracePropagator) Inject(ctx context.Context, carrier propagation.TextMapCarrier) {
	if id, ok := tracectx.FromContext(ctx); ok {
		carrier.Set(p.header(), id)
	}
}

// Extract returns ctx carrying the header value, or ctx unchanged when the
// header is missing.
func (p CloudTracePropagator) Extract(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if id := carrier.Get(p.header()); id != "" {
		return tracectx.NewContext(ctx, id)
	}
	return ctx
}

// Fields returns the header the propagator reads and writes.
func (p CloudTracePropagator) Fields() []string {
	return []string{p.header()}
}

// CloudTraceContext is a parsed x-cloud-trace-context value of the form
// "TRACE_ID/SPAN_ID;o=OPTIONS".
type CloudTraceContext struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// ParseCloudTraceContext splits a Cloud Trace header value. It reports false
// when the value has no trace id. The span and options parts are optional.
func ParseCloudTraceContext(value string) (CloudTraceContext, bool) {
	var tc CloudTraceContext
	rest, options, hasOptions := strings.Cut(value, ";")
	tc.TraceID, tc.SpanID, _ = strings.Cut(rest, "/")
	if tc.TraceID == "" {
		return CloudTraceContext{}, false
	}
	if hasOptions {
		if o, ok := strings.CutPrefix(options, "o="); ok {
			n, err := strconv.Atoi(o)
			tc.Sampled = err == nil && n&1 == 1
		}
	}
	return tc, true
}

// HTTPCarrier adapts http.Header to propagation.TextMapCarrier.
type HTTPCarrier http.Header

// Get returns the value associated with the passed key.
func (c HTTPCarrier) Get(key string) string {
	return http.Header(c).Get(key)
}

// Set stores the key-value pair.
func (c HTTPCarrier) Set(key, value string) {
	http.Header(c).Set(key, value)
}

// Keys lists the keys stored in this carrier.
func (c HTTPCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// GRPCCarrier adapts gRPC metadata to propagation.TextMapCarrier.
type GRPCCarrier struct {
	md *metadata.MD
}

// Get returns the first value for key.
func (c *GRPCCarrier) Get(key string) string {
	values := c.md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Set stores the key-value pair.
func (c *GRPCCarrier) Set(key, value string) {
	c.md.Set(key, value)
}

// Keys lists the keys stored in this carrier.
func (c *GRPCCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.md))
	for k := range *c.md {
		keys = append(keys, k)
	}
	return keys
}

// InjectHTTP writes the trace context of ctx into header using the global
// propagator.
//
//	req, _ := http.NewRequestWithContext(ctx, "GET", "http://jobs/api", nil)
//	tracing.InjectHTTP(ctx, req.Header)
func InjectHTTP(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, HTTPCarrier(header))
}

// ExtractHTTP returns ctx with the trace context read from header.
func ExtractHTTP(ctx context.Context, header http.Header) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, HTTPCarrier(header))
}

// InjectGRPC writes the trace context of ctx into md.
//
//	md := metadata.New(nil)
//	tracing.InjectGRPC(ctx, &md)
//	ctx = metadata.NewOutgoingContext(ctx, md)
func InjectGRPC(ctx context.Context, md *metadata.MD) {
	otel.GetTextMapPropagator().Inject(ctx, &GRPCCarrier{md: md})
}

// ExtractGRPC returns ctx with the trace context read from md.
func ExtractGRPC(ctx context.Context, md *metadata.MD) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, &GRPCCarrier{md: md})
}

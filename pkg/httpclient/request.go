package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"resty.dev/v3"
)

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// Request is a single outbound request built fluently.
type Request struct {
	client  *Client
	resty   *resty.Request
	ctx     context.Context
	method  string
	url     string
	timeout time.Duration
	result  interface{}
}

// SetMethod sets the HTTP method.
func (r *Request) SetMethod(method string) *Request {
	r.method = method
	return r
}

// SetURL sets the URL, relative to BaseURL or absolute.
func (r *Request) SetURL(url string) *Request {
	r.url = url
	return r
}

// WithHeader sets a header.
func (r *Request) WithHeader(key, value string) *Request {
	r.resty.SetHeader(key, value)
	return r
}

// WithQuery adds a query parameter.
func (r *Request) WithQuery(key, value string) *Request {
	r.resty.SetQueryParam(key, value)
	return r
}

// WithQueryParams adds several query parameters.
func (r *Request) WithQueryParams(params map[string]string) *Request {
	r.resty.SetQueryParams(params)
	return r
}

// WithJSON sends body encoded as JSON.
func (r *Request) WithJSON(body interface{}) *Request {
	r.resty.SetBody(body)
	r.resty.SetHeader("Content-Type", "application/json")
	return r
}

// WithBody sends body as is.
func (r *Request) WithBody(body []byte) *Request {
	r.resty.SetBody(body)
	return r
}

// WithTimeout bounds this request by timeout in addition to the client
// timeout.
func (r *Request) WithTimeout(timeout time.Duration) *Request {
	r.timeout = timeout
	return r
}

// IntoJSON decodes a successful, non-empty response body into result.
func (r *Request) IntoJSON(result interface{}) *Request {
	r.result = result
	return r
}

// Do sends the request. It waits for the rate limiter, forwards the trace
// id visible in the request context (or on the calling goroutine), and maps
// failures to pkg/errors types.
func (r *Request) Do() (*Response, error) {
	if !supportedMethods[r.method] {
		return nil, errors.NewPermanent(fmt.Sprintf("unsupported HTTP method: %s", r.method), nil)
	}

	ctx := r.ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if err := r.client.checkRateLimit(ctx); err != nil {
		return nil, err
	}

	var span trace.Span
	if r.client.spans {
		ctx, span = tracing.StartSpan(ctx, "HTTP "+r.method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.method", r.method),
				attribute.String("http.url", r.url),
			),
		)
		defer span.End()

		header := http.Header{}
		tracing.InjectHTTP(ctx, header)
		for k := range header {
			r.resty.SetHeader(k, header.Get(k))
		}
	}

	if r.client.forward {
		if id, ok := r.client.observer.FromContext(ctx); ok {
			r.resty.SetHeader(r.client.header, id)
		}
	}

	r.resty.SetContext(ctx)
	start := time.Now()
	resp, err := r.resty.Execute(r.method, r.url)
	response, err := newResponse(resp, err)
	if err == nil && r.result != nil && len(response.Body()) > 0 {
		err = response.BodyAsJSON(r.result)
	}
	elapsed := time.Since(start)

	if span != nil {
		endClientSpan(span, response, err)
	}
	r.client.record(ctx, r.method, r.url, response, err, elapsed)
	return response, err
}

func endClientSpan(span trace.Span, resp *Response, err error) {
	if resp != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode()))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "")
}

// Package httpclient is an outbound HTTP client that keeps calls inside the
// caller's trace: each request carries the trace id visible to the calling
// goroutine in the trace header, and is logged with it. Retries, rate
// limiting and error mapping follow pkg/errors.
//
// Example usage:
//
//	client, err := httpclient.New(ctx, cfg.HTTPClient, httpclient.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	var job Job
//	_, err = client.Get(ctx, "/jobs/42").IntoJSON(&job).Do()
package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/errors"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/Combine-Capital/cqtrace/pkg/metrics"
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"golang.org/x/time/rate"
	"resty.dev/v3"
)

// Client sends HTTP requests with trace forwarding, retries and rate
// limiting.
type Client struct {
	resty    *resty.Client
	config   config.HTTPClientConfig
	limiter  *rate.Limiter
	logger   *logging.Logger
	observer *tracectx.Observer
	header   string
	forward  bool
	spans    bool
	metrics  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Client.
type Option func(*Client)

// WithLogger logs every completed request to l.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithObserver reads the trace id to forward from o instead of the default
// Observer.
func WithObserver(o *tracectx.Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithTraceHeader forwards the trace id in name instead of
// tracectx.DefaultHeader.
func WithTraceHeader(name string) Option {
	return func(c *Client) {
		if name != "" {
			c.header = name
		}
	}
}

// WithSpans starts a client span for every request and injects the W3C
// trace context headers.
func WithSpans() Option {
	return func(c *Client) {
		c.spans = true
	}
}

// WithMetrics records request count and duration under namespace.
func WithMetrics(namespace string) Option {
	return func(c *Client) {
		if err := metrics.InitStandardMetrics(namespace); err != nil {
			return
		}
		c.metrics = true
	}
}

// New creates a Client from cfg.
func New(ctx context.Context, cfg config.HTTPClientConfig, opts ...Option) (*Client, error) {
	cfg = applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid http client config")
	}

	restyClient := resty.New()
	if cfg.BaseURL != "" {
		restyClient.SetBaseURL(cfg.BaseURL)
	}
	restyClient.SetTimeout(cfg.Timeout)

	if cfg.RetryCount > 0 {
		restyClient.
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(cfg.RetryWaitTime).
			SetRetryMaxWaitTime(cfg.RetryMaxWaitTime)

		// Temporary errors and 5xx except 501 are retried.
		restyClient.AddRetryConditions(func(res *resty.Response, err error) bool {
			if err != nil {
				return errors.IsTemporary(err)
			}
			code := res.StatusCode()
			return code >= 500 && code != 501
		})
	}

	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst)
	}

	clientCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		resty:    restyClient,
		config:   cfg,
		limiter:  limiter,
		observer: tracectx.Default(),
		header:   tracectx.DefaultHeader,
		forward:  *cfg.ForwardTrace,
		ctx:      clientCtx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get creates a GET request for url, relative to BaseURL or absolute.
func (c *Client) Get(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod("GET").SetURL(url)
}

// Post creates a POST request.
func (c *Client) Post(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod("POST").SetURL(url)
}

// Put creates a PUT request.
func (c *Client) Put(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod("PUT").SetURL(url)
}

// Patch creates a PATCH request.
func (c *Client) Patch(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod("PATCH").SetURL(url)
}

// Delete creates a DELETE request.
func (c *Client) Delete(ctx context.Context, url string) *Request {
	return c.NewRequest(ctx).SetMethod("DELETE").SetURL(url)
}

// NewRequest creates an empty request bound to ctx.
func (c *Client) NewRequest(ctx context.Context) *Request {
	if ctx == nil {
		ctx = c.ctx
	}
	return &Request{client: c, resty: c.resty.R(), ctx: ctx}
}

// WithAuthToken sets a Bearer token on all requests.
func (c *Client) WithAuthToken(token string) *Client {
	c.resty.SetAuthToken(token)
	return c
}

// WithDefaultHeader sets a header on all requests.
func (c *Client) WithDefaultHeader(key, value string) *Client {
	c.resty.SetHeader(key, value)
	return c
}

// WithDefaultHeaders sets several headers on all requests.
func (c *Client) WithDefaultHeaders(headers map[string]string) *Client {
	c.resty.SetHeaders(headers)
	return c
}

// Close releases the client's resources.
func (c *Client) Close() error {
	c.cancel()
	c.resty.Close()
	return nil
}

// checkRateLimit blocks until the limiter admits a request or ctx is done.
func (c *Client) checkRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit wait failed")
	}
	return nil
}

// record logs and measures a finished request.
func (c *Client) record(ctx context.Context, method, url string, resp *Response, err error, elapsed time.Duration) {
	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}

	if c.metrics {
		metrics.ObserveHTTPClient(method, fmt.Sprintf("%d", status), elapsed.Seconds())
	}

	if c.logger == nil {
		return
	}
	sev := logging.SeverityInfo
	msg := "HTTP request completed"
	switch {
	case resp == nil:
		sev, msg = logging.SeverityError, "HTTP request failed"
	case status >= 500:
		sev = logging.SeverityError
	case status >= 400:
		sev = logging.SeverityWarning
	}

	e := c.logger.WithLevel(sev)
	if e == nil {
		return
	}
	e = e.Ctx(ctx).
		Str(logging.Method, method).
		Str("url", url).
		Str(logging.Duration, fmt.Sprintf("%.3fms", float64(elapsed.Microseconds())/1000))
	if status > 0 {
		e = e.Int("status", status)
	}
	if err != nil {
		e = e.Err(err)
	}
	e.Msg(msg)
}

func applyDefaults(cfg config.HTTPClientConfig) config.HTTPClientConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWaitTime == 0 {
		cfg.RetryWaitTime = time.Second
	}
	if cfg.RetryMaxWaitTime == 0 {
		cfg.RetryMaxWaitTime = 10 * time.Second
	}
	if cfg.RateLimitBurst == 0 && cfg.RateLimitPerSecond > 0 {
		cfg.RateLimitBurst = 1
	}
	if cfg.ForwardTrace == nil {
		forward := true
		cfg.ForwardTrace = &forward
	}
	return cfg
}

func validateConfig(cfg config.HTTPClientConfig) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must be positive, got: %v", cfg.Timeout)
	}
	if cfg.RetryCount < 0 {
		return fmt.Errorf("retry_count must be non-negative, got: %d", cfg.RetryCount)
	}
	if cfg.RateLimitPerSecond < 0 {
		return fmt.Errorf("rate_limit_per_second must be non-negative, got: %f", cfg.RateLimitPerSecond)
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate_limit_burst must be non-negative, got: %d", cfg.RateLimitBurst)
	}
	return nil
}

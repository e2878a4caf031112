package metrics

import "sync"

var (
	httpRequestDuration *Histogram
	httpRequestCount    *Counter

	httpClientDuration *Histogram
	httpClientCount    *Counter

	grpcCallDuration *Histogram
	grpcCallCount    *Counter

	standardOnce sync.Once
	standardErr  error
)

var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// InitStandardMetrics registers the request metrics recorded by the
// middlewares and the HTTP client. Only the first call registers; later
// calls return its error.
func InitStandardMetrics(namespace string) error {
	standardOnce.Do(func() {
		standardErr = initStandardMetrics(namespace)
	})
	return standardErr
}

// requestPair registers a "<what>_duration_seconds" histogram and a
// "<what>s_total" counter sharing one label set.
func requestPair(ns, subsystem, what, help string, labels ...string) (*Histogram, *Counter, error) {
	base := Opts{Namespace: ns, Subsystem: subsystem, Labels: labels}

	hOpts := HistogramOpts{Opts: base, Buckets: latencyBuckets}
	hOpts.Name, hOpts.Help = what+"_duration_seconds", help+" duration in seconds"
	h, err := NewHistogram(hOpts)
	if err != nil {
		return nil, nil, err
	}

	cOpts := base
	cOpts.Name, cOpts.Help = what+"s_total", "Total number of "+help+"s"
	c, err := NewCounter(cOpts)
	if err != nil {
		return nil, nil, err
	}
	return h, c, nil
}

func initStandardMetrics(ns string) (err error) {
	if httpRequestDuration, httpRequestCount, err = requestPair(ns, "http", "request", "HTTP request", "method", "path", "status_code"); err != nil {
		return err
	}
	if httpClientDuration, httpClientCount, err = requestPair(ns, "http_client", "request", "outbound HTTP request", "method", "status_code"); err != nil {
		return err
	}
	grpcCallDuration, grpcCallCount, err = requestPair(ns, "grpc", "call", "gRPC call", "method", "status_code")
	return err
}

// ObserveHTTPClient records one outbound request. It does nothing until
// InitStandardMetrics has succeeded.
func ObserveHTTPClient(method, statusCode string, seconds float64) {
	if httpClientDuration == nil || httpClientCount == nil {
		return
	}
	httpClientDuration.Observe(seconds, method, statusCode)
	httpClientCount.Inc(method, statusCode)
}

package metrics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`)
	labelName  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Opts names a metric "{Namespace}_{Subsystem}_{Name}" and its label set.
type Opts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

func (o Opts) validate() error {
	if fq := prometheus.BuildFQName(o.Namespace, o.Subsystem, o.Name); !metricName.MatchString(fq) {
		return fmt.Errorf("invalid metric name: %s", fq)
	}
	for _, l := range o.Labels {
		switch {
		case !labelName.MatchString(l):
			return fmt.Errorf("invalid label name: %s", l)
		case strings.HasPrefix(l, "__"):
			return fmt.Errorf("label name %s is reserved", l)
		}
	}
	return nil
}

// CounterOpts describes a counter.
type CounterOpts = Opts

// HistogramOpts describes a histogram. Nil Buckets means prometheus.DefBuckets.
type HistogramOpts struct {
	Opts
	Buckets []float64
}

// Counter is a registered, labelled counter.
type Counter struct {
	vec *prometheus.CounterVec
}

// NewCounter validates opts and registers the counter.
func NewCounter(opts CounterOpts) (*Counter, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help,
	}, opts.Labels)
	if err := Register(vec); err != nil {
		return nil, fmt.Errorf("register counter %s: %w", opts.Name, err)
	}
	return &Counter{vec}, nil
}

func (c *Counter) Inc(labelValues ...string) { c.vec.WithLabelValues(labelValues...).Inc() }

func (c *Counter) WithLabelValues(labelValues ...string) prometheus.Counter {
	return c.vec.WithLabelValues(labelValues...)
}

// Histogram is a registered, labelled histogram.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// NewHistogram validates opts and registers the histogram.
func NewHistogram(opts HistogramOpts) (*Histogram, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	buckets := opts.Buckets
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help, Buckets: buckets,
	}, opts.Labels)
	if err := Register(vec); err != nil {
		return nil, fmt.Errorf("register histogram %s: %w", opts.Name, err)
	}
	return &Histogram{vec}, nil
}

func (h *Histogram) Observe(value float64, labelValues ...string) {
	h.vec.WithLabelValues(labelValues...).Observe(value)
}

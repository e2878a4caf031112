package metrics

import (
	"github.com/Combine-Capital/cqtrace/pkg/tracectx"
	"github.com/prometheus/client_golang/prometheus"
)

// TraceCollector exports an Observer's registry size and lifecycle counters.
// Values are read from Observer.Stats at scrape time.
//
// With no request in flight the registry_entries gauge should be zero; a
// value that keeps growing points at nodes that are never destroyed.
type TraceCollector struct {
	observer *tracectx.Observer

	entries   *prometheus.Desc
	created   *prometheus.Desc
	destroyed *prometheus.Desc
	started   *prometheus.Desc
	generated *prometheus.Desc
}

var _ prometheus.Collector = (*TraceCollector)(nil)

// NewTraceCollector creates a collector for o. A nil o means the default
// Observer.
func NewTraceCollector(namespace string, o *tracectx.Observer) *TraceCollector {
	if o == nil {
		o = tracectx.Default()
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "tracectx", name), help, nil, nil)
	}
	return &TraceCollector{
		observer:  o,
		entries:   desc("registry_entries", "Execution nodes currently holding a trace context value."),
		created:   desc("nodes_created_total", "Execution nodes created through the observer."),
		destroyed: desc("nodes_destroyed_total", "Execution nodes destroyed through the observer."),
		started:   desc("traces_started_total", "Calls to Start."),
		generated: desc("traces_generated_total", "Calls to Start that generated a trace id."),
	}
}

// Describe implements prometheus.Collector.
func (c *TraceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.created
	ch <- c.destroyed
	ch <- c.started
	ch <- c.generated
}

// Collect implements prometheus.Collector.
func (c *TraceCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.observer.Stats()
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Live))
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(s.Created))
	ch <- prometheus.MustNewConstMetric(c.destroyed, prometheus.CounterValue, float64(s.Destroyed))
	ch <- prometheus.MustNewConstMetric(c.started, prometheus.CounterValue, float64(s.Started))
	ch <- prometheus.MustNewConstMetric(c.generated, prometheus.CounterValue, float64(s.Generated))
}

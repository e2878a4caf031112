// Package metrics exposes Prometheus metrics for services using cqtrace:
// request counters and histograms recorded by middleware, and the trace
// registry's own gauges and counters through TraceCollector.
//
// Example usage:
//
//	if err := metrics.Init(cfg.Metrics); err != nil {
//	    log.Fatal(err)
//	}
//	defer metrics.Shutdown(context.Background())
//
//	metrics.MustRegister(metrics.NewTraceCollector(cfg.Metrics.Namespace, tracectx.Default()))
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Combine-Capital/cqtrace/pkg/config"
	"github.com/Combine-Capital/cqtrace/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry    *prometheus.Registry
	registryMu  sync.RWMutex
	initialized bool

	server   *http.Server
	serverMu sync.Mutex
)

// Init creates the metrics registry. When metrics are enabled it registers
// the Go and process collectors and, if cfg.Port is set, serves cfg.Path on
// that port. A zero port leaves serving to the caller through Handler.
//
// Calls after the first are no-ops.
func Init(cfg config.MetricsConfig) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if initialized {
		return nil
	}

	registry = prometheus.NewRegistry()
	if !cfg.Enabled {
		initialized = true
		return nil
	}

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.Port > 0 {
		path := cfg.Path
		if path == "" {
			path = "/metrics"
		}
		mux := http.NewServeMux()
		mux.Handle(path, handlerFor(registry))

		serverMu.Lock()
		server = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		srv := server
		serverMu.Unlock()

		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Default().Error().Err(err).Str(logging.Component, "metrics").Msg("metrics server stopped")
			}
		}()
	}

	initialized = true
	return nil
}

func handlerFor(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Handler serves the registry in the Prometheus exposition format. It returns
// 503 until Init has been called.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg := Registry()
		if reg == nil {
			http.Error(w, "metrics not initialized", http.StatusServiceUnavailable)
			return
		}
		handlerFor(reg).ServeHTTP(w, r)
	})
}

// Shutdown stops the metrics server started by Init, if any.
func Shutdown(ctx context.Context) error {
	serverMu.Lock()
	defer serverMu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Registry returns the registry created by Init, or nil before Init.
func Registry() *prometheus.Registry {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry
}

// IsInitialized reports whether Init has been called.
func IsInitialized() bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return initialized
}

// Register adds c to the registry.
func Register(c prometheus.Collector) error {
	reg := Registry()
	if reg == nil {
		return fmt.Errorf("metrics not initialized, call Init() first")
	}
	return reg.Register(c)
}

// MustRegister is Register that panics on error.
func MustRegister(c prometheus.Collector) {
	if err := Register(c); err != nil {
		panic(err)
	}
}

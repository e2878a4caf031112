package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultTraceHeader is the inbound header carrying the trace id.
const DefaultTraceHeader = "x-cloud-trace-context"

// DefaultExcludeKeys are payload keys whose values are never logged.
var DefaultExcludeKeys = []string{"password", "token", "newPassword", "oldPassword"}

// DefaultSkipPaths are the probe paths the request logger ignores.
var DefaultSkipPaths = []string{"/healthz", "/readiness"}

// Validate reports every invalid section of cfg, joined into one error.
func Validate(cfg *Config) error {
	return errors.Join(
		cfg.Server.validate(),
		cfg.Log.validate(),
		cfg.Trace.validate(),
		cfg.Database.validate(),
		cfg.Tracing.validate(),
		cfg.Metrics.validate(),
		cfg.HTTPClient.validate(),
	)
}

func (s ServerConfig) validate() error {
	if s.HTTPPort == 0 && s.GRPCPort == 0 {
		return errors.New("server.http_port or server.grpc_port is required")
	}
	return nil
}

func (l LogConfig) validate() error {
	if l.Format != "json" && l.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", l.Format)
	}
	if l.MaxFieldLength < 0 || l.MaxFieldLengthForError < 0 {
		return errors.New("log field lengths must not be negative")
	}
	return nil
}

func (t TraceConfig) validate() error {
	if strings.TrimSpace(t.Header) == "" {
		return errors.New("trace.header must not be blank")
	}
	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return nil
	}
	var missing []string
	if d.Port == 0 {
		missing = append(missing, "database.port")
	}
	if d.User == "" {
		missing = append(missing, "database.user")
	}
	if d.Database == "" {
		missing = append(missing, "database.database")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required when database.host is set", strings.Join(missing, ", "))
	}
	return nil
}

func (t TracingConfig) validate() error {
	if !t.Enabled {
		return nil
	}
	var errs []error
	switch t.ExportMode {
	case "stdout":
	case "grpc", "http":
		if t.Endpoint == "" {
			errs = append(errs, fmt.Errorf("tracing.endpoint is required for export_mode %s", t.ExportMode))
		}
	default:
		errs = append(errs, fmt.Errorf("tracing.export_mode must be grpc, http or stdout, got %q", t.ExportMode))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		errs = append(errs, errors.New("tracing.sample_rate must be between 0.0 and 1.0"))
	}
	return errors.Join(errs...)
}

func (m MetricsConfig) validate() error {
	if m.Enabled && m.Port == 0 {
		return errors.New("metrics.port is required when metrics are enabled")
	}
	return nil
}

func (h HTTPClientConfig) validate() error {
	if h.RateLimitPerSecond < 0 {
		return errors.New("http_client.rate_limit_per_second must not be negative")
	}
	return nil
}

// orDefault sets *p to v when *p is the zero value.
func orDefault[T comparable](p *T, v T) {
	var zero T
	if *p == zero {
		*p = v
	}
}

// ApplyDefaults fills unset fields the same way Load does, for a Config
// built in code.
func ApplyDefaults(cfg *Config) {
	applyDefaults(cfg)
}

func applyDefaults(cfg *Config) {
	orDefault(&cfg.Service.Env, "development")
	cfg.Server.defaults()
	cfg.Log.defaults(cfg.Service)
	orDefault(&cfg.Trace.Header, DefaultTraceHeader)
	cfg.Database.defaults()
	cfg.Metrics.defaults(cfg.Service)
	cfg.Tracing.defaults(cfg.Service)
	cfg.HTTPClient.defaults()
}

func (s *ServerConfig) defaults() {
	if s.HTTPPort == 0 && s.GRPCPort == 0 {
		s.HTTPPort = 8080
	}
	orDefault(&s.ReadTimeout, 30*time.Second)
	orDefault(&s.WriteTimeout, 30*time.Second)
	orDefault(&s.ShutdownTimeout, 30*time.Second)
	orDefault(&s.MaxHeaderBytes, 1<<20)
}

func (l *LogConfig) defaults(svc ServiceConfig) {
	orDefault(&l.Level, "info")
	format := "console"
	if svc.IsProduction() {
		format = "json"
	}
	orDefault(&l.Format, format)
	orDefault(&l.Output, "stdout")
	orDefault(&l.MaxFieldLengthForError, 4000)
	if l.ExcludeKeys == nil {
		l.ExcludeKeys = append([]string(nil), DefaultExcludeKeys...)
	}
	if l.SkipPaths == nil {
		l.SkipPaths = append([]string(nil), DefaultSkipPaths...)
	}
}

func (d *DatabaseConfig) defaults() {
	if d.Host != "" {
		orDefault(&d.Port, 5432)
	}
	orDefault(&d.MaxConns, 25)
	orDefault(&d.MinConns, 2)
	orDefault(&d.MaxConnLifetime, time.Hour)
	orDefault(&d.MaxConnIdleTime, 10*time.Minute)
	orDefault(&d.ConnectTimeout, 30*time.Second)
	orDefault(&d.SSLMode, "prefer")
}

func (m *MetricsConfig) defaults(svc ServiceConfig) {
	if m.Enabled {
		orDefault(&m.Port, 9090)
	}
	orDefault(&m.Path, "/metrics")
	orDefault(&m.Namespace, strings.ReplaceAll(svc.Name, "-", "_"))
}

func (t *TracingConfig) defaults(svc ServiceConfig) {
	if t.Enabled {
		orDefault(&t.SampleRate, 0.1)
	}
	orDefault(&t.ServiceName, svc.Name)
	orDefault(&t.ServiceName, "cqtrace-service")
	orDefault(&t.Environment, svc.Env)
	orDefault(&t.ExportMode, "grpc")
	orDefault(&t.BatchTimeout, 5*time.Second)
}

func (h *HTTPClientConfig) defaults() {
	orDefault(&h.Timeout, 30*time.Second)
	orDefault(&h.RetryCount, 3)
	orDefault(&h.RetryWaitTime, time.Second)
	orDefault(&h.RetryMaxWaitTime, 10*time.Second)
	orDefault(&h.RateLimitBurst, 1)
	if h.ForwardTrace == nil {
		forward := true
		h.ForwardTrace = &forward
	}
}

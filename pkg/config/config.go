// Package config loads cqtrace service configuration from a YAML or JSON
// file overlaid with environment variables, fills defaults and validates it.
//
//	cfg, err := config.Load("cqtrace.yaml", "CQTRACE")
//	if err != nil {
//	    return err
//	}
//
// CQTRACE_TRACE_HEADER overrides trace.header, CQTRACE_LOG_LEVEL (or bare
// LOG_LEVEL) overrides log.level, and so on for every key.
package config

import (
	"time"
)

// Config is the full configuration of a traced service.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Trace      TraceConfig      `mapstructure:"trace"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Database   DatabaseConfig   `mapstructure:"database"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
}

// ServiceConfig identifies the service in logs, spans and metrics.
type ServiceConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"`
}

// IsProduction reports Env == "production". Production defaults to JSON logs.
func (s ServiceConfig) IsProduction() bool {
	return s.Env == "production"
}

// ServerConfig configures the ingress listeners. A zero port disables one.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
}

// LogConfig configures the severity logger.
type LogConfig struct {
	// Level is the minimum severity written: default, debug, info, notice,
	// warning, error, critical, alert, emergency. Unknown values mean info.
	Level string `mapstructure:"level"`

	// Format is json or console.
	Format string `mapstructure:"format"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output"`

	// ExcludeKeys are payload keys whose values are replaced with "[FILTERED]".
	ExcludeKeys []string `mapstructure:"exclude_keys"`

	// MaxFieldLength truncates payload strings below WARNING (0 = unlimited).
	MaxFieldLength int `mapstructure:"max_field_length"`

	// MaxFieldLengthForError truncates payload strings at WARNING and above.
	MaxFieldLengthForError int `mapstructure:"max_field_length_for_error"`

	// SkipPaths are request paths the request logger ignores.
	SkipPaths []string `mapstructure:"skip_paths"`
}

// TraceConfig configures inbound trace context propagation.
type TraceConfig struct {
	// Header is the inbound header carrying the trace id.
	Header string `mapstructure:"header"`
}

// TracingConfig configures span export. Spans are separate from the trace
// context value; they carry it as an attribute.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"` // OTLP collector, unused for stdout
	SampleRate float64 `mapstructure:"sample_rate"`

	ServiceName  string        `mapstructure:"service_name"`
	Environment  string        `mapstructure:"environment"`
	ExportMode   string        `mapstructure:"export_mode"` // grpc, http or stdout
	Insecure     bool          `mapstructure:"insecure"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// MetricsConfig configures the Prometheus registry and its listener.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// DatabaseConfig configures the pgx pool. An empty Host disables the database.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`

	// LogQueries logs every executed statement.
	LogQueries bool `mapstructure:"log_queries"`

	// SlowQueryThreshold logs statements slower than this at WARNING (0 disables).
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// HTTPClientConfig configures the downstream client. An empty BaseURL
// disables it.
type HTTPClientConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`

	RetryWaitTime    time.Duration `mapstructure:"retry_wait_time"`
	RetryMaxWaitTime time.Duration `mapstructure:"retry_max_wait_time"`

	// RateLimitPerSecond is the maximum requests per second (0 = unlimited).
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	// ForwardTrace sends the caller's trace id downstream. Nil means true.
	ForwardTrace *bool `mapstructure:"forward_trace"`
}

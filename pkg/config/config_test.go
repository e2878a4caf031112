package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestLoad verifies configuration loading from YAML file
func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
service:
  name: test-service
  version: 1.0.0
  env: production

server:
  http_port: 8080
  read_timeout: 15s

log:
  level: warning
  exclude_keys:
    - secret
  max_field_length: 200

trace:
  header: x-request-trace

database:
  host: localhost
  port: 5432
  database: testdb
  user: testuser
  log_queries: true
  slow_query_threshold: 250ms

tracing:
  enabled: true
  endpoint: localhost:4317
  sample_rate: 0.5
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath, "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Service.Name != "test-service" {
		t.Errorf("Service.Name = %v, want %v", cfg.Service.Name, "test-service")
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 15*time.Second)
	}
	if cfg.Log.Level != "warning" {
		t.Errorf("Log.Level = %v, want %v", cfg.Log.Level, "warning")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %v, want json in production", cfg.Log.Format)
	}
	if !reflect.DeepEqual(cfg.Log.ExcludeKeys, []string{"secret"}) {
		t.Errorf("Log.ExcludeKeys = %v, want [secret]", cfg.Log.ExcludeKeys)
	}
	if cfg.Log.MaxFieldLength != 200 {
		t.Errorf("Log.MaxFieldLength = %v, want 200", cfg.Log.MaxFieldLength)
	}
	if cfg.Trace.Header != "x-request-trace" {
		t.Errorf("Trace.Header = %v, want %v", cfg.Trace.Header, "x-request-trace")
	}
	if !cfg.Database.LogQueries || cfg.Database.SlowQueryThreshold != 250*time.Millisecond {
		t.Errorf("Database = %+v, want query logging with 250ms threshold", cfg.Database)
	}
	if cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing.SampleRate = %v, want %v", cfg.Tracing.SampleRate, 0.5)
	}
}

// TestLoadFromEnv verifies loading configuration from environment variables
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CQTRACE_SERVER_HTTP_PORT", "8081")
	t.Setenv("CQTRACE_TRACE_HEADER", "x-env-trace")
	t.Setenv("CQTRACE_LOG_MAX_FIELD_LENGTH_FOR_ERROR", "100")

	cfg, err := LoadFromEnv("CQTRACE")
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Server.HTTPPort != 8081 {
		t.Errorf("Server.HTTPPort = %v, want 8081", cfg.Server.HTTPPort)
	}
	if cfg.Trace.Header != "x-env-trace" {
		t.Errorf("Trace.Header = %v, want x-env-trace", cfg.Trace.Header)
	}
	if cfg.Log.MaxFieldLengthForError != 100 {
		t.Errorf("Log.MaxFieldLengthForError = %v, want 100", cfg.Log.MaxFieldLengthForError)
	}
}

// TestLoadLogLevelEnv verifies the bare LOG_LEVEL variable is honoured
func TestLoadLogLevelEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadFromEnv("CQTRACE")
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %v, want debug", cfg.Log.Level)
	}

	t.Setenv("CQTRACE_LOG_LEVEL", "error")
	cfg, err = LoadFromEnv("CQTRACE")
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("Log.Level = %v, want prefixed variable to win", cfg.Log.Level)
	}
}

// TestMustLoad verifies MustLoad panics on error
func TestMustLoad(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustLoad() should panic on invalid config")
		}
	}()

	MustLoad("/nonexistent/path/config.yaml", "")
}

// TestMustLoadSuccess verifies MustLoad returns config on success
func TestMustLoadSuccess(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  http_port: 8080\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg := MustLoad(configPath, "")
	if cfg == nil {
		t.Error("MustLoad() returned nil")
	}
}

// TestValidate verifies configuration validation
func TestValidate(t *testing.T) {
	base := func(mutate func(*Config)) *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			cfg:     base(func(*Config) {}),
			wantErr: false,
		},
		{
			name:    "valid config with gRPC only",
			cfg:     base(func(c *Config) { c.Server.HTTPPort = 0; c.Server.GRPCPort = 9090 }),
			wantErr: false,
		},
		{
			name:    "invalid - no server ports",
			cfg:     base(func(c *Config) { c.Server.HTTPPort = 0 }),
			wantErr: true,
		},
		{
			name:    "invalid - log format",
			cfg:     base(func(c *Config) { c.Log.Format = "xml" }),
			wantErr: true,
		},
		{
			name:    "invalid - negative field length",
			cfg:     base(func(c *Config) { c.Log.MaxFieldLength = -1 }),
			wantErr: true,
		},
		{
			name:    "invalid - blank trace header",
			cfg:     base(func(c *Config) { c.Trace.Header = "  " }),
			wantErr: true,
		},
		{
			name: "invalid - database missing user",
			cfg: base(func(c *Config) {
				c.Database.Host = "localhost"
				c.Database.Port = 5432
				c.Database.Database = "db"
			}),
			wantErr: true,
		},
		{
			name:    "invalid - tracing enabled without endpoint",
			cfg:     base(func(c *Config) { c.Tracing.Enabled = true; c.Tracing.SampleRate = 1 }),
			wantErr: true,
		},
		{
			name: "valid - stdout tracing needs no endpoint",
			cfg: base(func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.ExportMode = "stdout"
				c.Tracing.SampleRate = 1
			}),
			wantErr: false,
		},
		{
			name: "invalid - tracing sample rate too high",
			cfg: base(func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Endpoint = "localhost:4317"
				c.Tracing.SampleRate = 1.5
			}),
			wantErr: true,
		},
		{
			name:    "invalid - metrics enabled without port",
			cfg:     base(func(c *Config) { c.Metrics.Enabled = true }),
			wantErr: true,
		},
		{
			name:    "invalid - negative rate limit",
			cfg:     base(func(c *Config) { c.HTTPClient.RateLimitPerSecond = -1 }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestApplyDefaults verifies default value application
func TestApplyDefaults(t *testing.T) {
	cfg := &Config{
		Service: ServiceConfig{
			Name: "test-service",
		},
	}

	applyDefaults(cfg)

	if cfg.Service.Env != "development" {
		t.Errorf("Service.Env = %v, want %v", cfg.Service.Env, "development")
	}
	if cfg.Server.HTTPPort != 8080 {
		t.Errorf("Server.HTTPPort = %v, want %v", cfg.Server.HTTPPort, 8080)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %v, want %v", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "console" {
		t.Errorf("Log.Format = %v, want console outside production", cfg.Log.Format)
	}
	if !reflect.DeepEqual(cfg.Log.ExcludeKeys, DefaultExcludeKeys) {
		t.Errorf("Log.ExcludeKeys = %v, want %v", cfg.Log.ExcludeKeys, DefaultExcludeKeys)
	}
	if cfg.Log.MaxFieldLength != 0 || cfg.Log.MaxFieldLengthForError != 4000 {
		t.Errorf("field lengths = %d/%d, want 0/4000", cfg.Log.MaxFieldLength, cfg.Log.MaxFieldLengthForError)
	}
	if !reflect.DeepEqual(cfg.Log.SkipPaths, DefaultSkipPaths) {
		t.Errorf("Log.SkipPaths = %v, want %v", cfg.Log.SkipPaths, DefaultSkipPaths)
	}
	if cfg.Trace.Header != DefaultTraceHeader {
		t.Errorf("Trace.Header = %v, want %v", cfg.Trace.Header, DefaultTraceHeader)
	}
	if cfg.Metrics.Namespace != "test_service" {
		t.Errorf("Metrics.Namespace = %v, want test_service", cfg.Metrics.Namespace)
	}
	if cfg.Tracing.ServiceName != "test-service" {
		t.Errorf("Tracing.ServiceName = %v, want test-service", cfg.Tracing.ServiceName)
	}
	if cfg.HTTPClient.ForwardTrace == nil || !*cfg.HTTPClient.ForwardTrace {
		t.Error("HTTPClient.ForwardTrace should default to true")
	}
}

// TestApplyDefaultsKeepsExplicitValues verifies explicit settings survive defaulting
func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	forward := false
	cfg := &Config{
		Log: LogConfig{
			ExcludeKeys: []string{},
			Format:      "json",
		},
		HTTPClient: HTTPClientConfig{ForwardTrace: &forward},
	}

	applyDefaults(cfg)

	if len(cfg.Log.ExcludeKeys) != 0 {
		t.Errorf("Log.ExcludeKeys = %v, want explicit empty list kept", cfg.Log.ExcludeKeys)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %v, want json", cfg.Log.Format)
	}
	if *cfg.HTTPClient.ForwardTrace {
		t.Error("HTTPClient.ForwardTrace = true, want explicit false kept")
	}
}

// TestApplyDefaultsWithDatabase verifies database-specific defaults
func TestApplyDefaultsWithDatabase(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{
			Host: "localhost",
		},
	}

	applyDefaults(cfg)

	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %v, want %v", cfg.Database.Port, 5432)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %v, want %v", cfg.Database.MaxConns, 25)
	}
	if cfg.Database.SSLMode != "prefer" {
		t.Errorf("Database.SSLMode = %v, want %v", cfg.Database.SSLMode, "prefer")
	}
}

func TestValidateReportsEverySection(t *testing.T) {
	cfg := &Config{
		Log:      LogConfig{Format: "xml"},
		Database: DatabaseConfig{Host: "db"},
		Tracing:  TracingConfig{Enabled: true, ExportMode: "http", SampleRate: 2},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() = nil")
	}
	for _, want := range []string{
		"server.http_port or server.grpc_port is required",
		`log.format must be json or console, got "xml"`,
		"trace.header must not be blank",
		"database.port, database.user, database.database required",
		"tracing.endpoint is required for export_mode http",
		"tracing.sample_rate must be between 0.0 and 1.0",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q, missing %q", err, want)
		}
	}
}

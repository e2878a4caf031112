package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from a file and environment variables.
// The prefix parameter is used for environment variable names (e.g., "CQTRACE" -> CQTRACE_LOG_LEVEL).
// LOG_LEVEL without a prefix is honoured as well. If configPath is empty, only environment
// variables are used.
func Load(configPath, envPrefix string) (*Config, error) {
	v := NewViper(envPrefix)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// NewViper creates a viper instance reading environment variables with envPrefix.
// Every known key is registered so that environment variables are picked up
// by Unmarshal even when no config file mentions them.
func NewViper(envPrefix string) *viper.Viper {
	v := viper.New()

	if envPrefix != "" {
		v.SetEnvPrefix(envPrefix)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range knownKeys {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("log.level", envName(envPrefix, "log.level"), "LOG_LEVEL")

	return v
}

// FromViper unmarshals, defaults and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and panics on error.
// This is useful in main() where configuration errors should be fatal.
func MustLoad(configPath, envPrefix string) *Config {
	cfg, err := Load(configPath, envPrefix)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFromEnv loads configuration only from environment variables (no config file).
func LoadFromEnv(envPrefix string) (*Config, error) {
	return Load("", envPrefix)
}

func envName(prefix, key string) string {
	name := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	if prefix == "" {
		return name
	}
	return strings.ToUpper(prefix) + "_" + name
}

var knownKeys = []string{
	"service.name", "service.version", "service.env",
	"server.http_port", "server.grpc_port", "server.read_timeout", "server.write_timeout",
	"server.shutdown_timeout", "server.max_header_bytes",
	"log.format", "log.output", "log.exclude_keys", "log.max_field_length",
	"log.max_field_length_for_error", "log.skip_paths",
	"trace.header",
	"tracing.enabled", "tracing.endpoint", "tracing.sample_rate", "tracing.service_name",
	"tracing.environment", "tracing.export_mode", "tracing.insecure", "tracing.batch_timeout",
	"metrics.enabled", "metrics.port", "metrics.path", "metrics.namespace",
	"database.host", "database.port", "database.database", "database.user", "database.password",
	"database.ssl_mode", "database.max_conns", "database.min_conns", "database.max_conn_lifetime",
	"database.max_conn_idle_time", "database.connect_timeout", "database.log_queries",
	"database.slow_query_threshold",
	"http_client.base_url", "http_client.timeout", "http_client.retry_count",
	"http_client.retry_wait_time", "http_client.retry_max_wait_time",
	"http_client.rate_limit_per_second", "http_client.rate_limit_burst", "http_client.forward_trace",
}

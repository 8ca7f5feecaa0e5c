package config

import "time"

// Config is the root configuration structure for the Prism gateway.
// It contains all configuration sections for the HTTP server, the upstream
// API, the credential pool, recovery probing, persistence, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Upstream contains configuration for the upstream generative-content API
	// that the gateway fronts.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Pool contains the credential pool configuration: the keys themselves,
	// failure thresholds, retry limits, and per-key rate ceilings.
	Pool PoolConfig `yaml:"pool"`

	// Recovery contains configuration for the background prober that
	// rechecks disabled keys.
	Recovery RecoveryConfig `yaml:"recovery"`

	// Storage contains configuration for key-state persistence across
	// restarts.
	Storage StorageConfig `yaml:"storage"`

	// Auth contains inbound client authentication configuration.
	Auth AuthConfig `yaml:"auth"`

	// Telemetry contains observability configuration: logging, metrics,
	// and distributed tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Deployments with slow upstream calls should keep this well above the
	// per-attempt upstream timeout times the retry limit.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// UpstreamConfig contains configuration for the upstream API.
type UpstreamConfig struct {
	// BaseURL is the base URL for the upstream API endpoint.
	// Example: "https://generativelanguage.googleapis.com/v1beta"
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-attempt call timeout. Each retry gets a fresh
	// timeout of this duration.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// ProbePath is the relative path used for lightweight recovery probes.
	// It should be a cheap read-only endpoint that still authenticates the
	// key.
	// Default: "/models"
	ProbePath string `yaml:"probe_path"`

	// MaxIdleConns controls the connection pool size toward the upstream.
	// Default: 100
	MaxIdleConns int `yaml:"max_idle_conns"`
}

// PoolConfig contains the credential pool configuration.
type PoolConfig struct {
	// Keys is the ordered list of upstream credentials. Order establishes
	// the round-robin rotation order.
	Keys []string `yaml:"keys"`

	// MaxFailures is the number of consecutive key-specific failures after
	// which a key is disabled and quarantined. Must be >= 1.
	// Default: 3
	MaxFailures int `yaml:"max_failures"`

	// MaxRetries is the maximum number of upstream attempts for a single
	// inbound request. Must be >= 1.
	// Default: 3
	MaxRetries int `yaml:"max_retries"`

	// RequestsPerMinute is the per-key admission ceiling over the trailing
	// rate window. Zero disables per-key rate limiting.
	// Default: 60
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// RateWindow is the trailing window the ceiling applies to.
	// Default: 1m
	RateWindow time.Duration `yaml:"rate_window"`
}

// RecoveryConfig contains configuration for the recovery prober.
type RecoveryConfig struct {
	// Enabled controls whether background probing runs at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// CheckInterval is the probe cadence for the entire disabled set.
	// Default: 1h
	CheckInterval time.Duration `yaml:"check_interval"`

	// MinDisabled is the minimum quarantine duration before a disabled key
	// becomes eligible for its first probe. Zero means immediately eligible.
	// Default: 0
	MinDisabled time.Duration `yaml:"min_disabled"`

	// ProbeTimeout is the timeout for a single probe call.
	// Default: 15s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// ProbesPerSecond caps the aggregate probe rate so probing never
	// competes with live traffic. Probes consume this budget, not the
	// per-key client-traffic window.
	// Default: 1
	ProbesPerSecond float64 `yaml:"probes_per_second"`

	// ProbeBurst is the burst allowance for the probe budget.
	// Default: 1
	ProbeBurst int `yaml:"probe_burst"`
}

// StorageConfig contains configuration for key-state persistence.
type StorageConfig struct {
	// Backend selects the persistence backend: "memory" or "sqlite".
	// The memory backend loses quarantine state on restart.
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file path (sqlite backend only).
	// Default: "prism-state.db"
	Path string `yaml:"path"`
}

// AuthConfig contains inbound client authentication configuration.
type AuthConfig struct {
	// AccessTokens is the list of bearer tokens accepted on /v1 endpoints.
	// An empty list disables inbound authentication.
	AccessTokens []string `yaml:"access_tokens"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the Prometheus metric namespace.
	// Default: "prism"
	Namespace string `yaml:"namespace"`

	// Subsystem is the Prometheus metric subsystem.
	// Default: "gateway"
	Subsystem string `yaml:"subsystem"`

	// DurationBuckets are the histogram buckets for upstream call latency,
	// in seconds. Defaults are tuned for generative-content latencies.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported. When disabled a noop
	// tracer is installed with near-zero overhead.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP/gRPC collector endpoint (host:port).
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the reported service name.
	// Default: "prism-gateway"
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the trace sampling ratio in [0, 1].
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS toward the collector.
	// Default: true
	Insecure bool `yaml:"insecure"`
}

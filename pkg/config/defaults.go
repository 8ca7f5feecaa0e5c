package config

import "time"

// Default values applied to unset configuration fields.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20

	DefaultUpstreamTimeout = 60 * time.Second
	DefaultProbePath       = "/models"
	DefaultMaxIdleConns    = 100

	DefaultMaxFailures       = 3
	DefaultMaxRetries        = 3
	DefaultRequestsPerMinute = 60
	DefaultRateWindow        = time.Minute

	DefaultCheckInterval   = time.Hour
	DefaultProbeTimeout    = 15 * time.Second
	DefaultProbesPerSecond = 1.0
	DefaultProbeBurst      = 1

	DefaultStorageBackend = "memory"
	DefaultStoragePath    = "prism-state.db"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It is called by LoadConfig before validation; callers constructing a Config
// directly (tests, embedding) may call it themselves.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.ProbePath == "" {
		cfg.Upstream.ProbePath = DefaultProbePath
	}
	if cfg.Upstream.MaxIdleConns == 0 {
		cfg.Upstream.MaxIdleConns = DefaultMaxIdleConns
	}

	if cfg.Pool.MaxFailures == 0 {
		cfg.Pool.MaxFailures = DefaultMaxFailures
	}
	if cfg.Pool.MaxRetries == 0 {
		cfg.Pool.MaxRetries = DefaultMaxRetries
	}
	if cfg.Pool.RequestsPerMinute == 0 {
		cfg.Pool.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if cfg.Pool.RateWindow == 0 {
		cfg.Pool.RateWindow = DefaultRateWindow
	}

	if cfg.Recovery.CheckInterval == 0 {
		cfg.Recovery.Enabled = true
		cfg.Recovery.CheckInterval = DefaultCheckInterval
	}
	if cfg.Recovery.ProbeTimeout == 0 {
		cfg.Recovery.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Recovery.ProbesPerSecond == 0 {
		cfg.Recovery.ProbesPerSecond = DefaultProbesPerSecond
	}
	if cfg.Recovery.ProbeBurst == 0 {
		cfg.Recovery.ProbeBurst = DefaultProbeBurst
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}

	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Enabled = true
		cfg.Telemetry.Metrics.Namespace = "prism"
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = "gateway"
	}
	if len(cfg.Telemetry.Metrics.DurationBuckets) == 0 {
		// 100ms to 2 minutes, matching generative-content latencies.
		cfg.Telemetry.Metrics.DurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}
	}

	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = "localhost:4317"
		cfg.Telemetry.Tracing.Insecure = true
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = "prism-gateway"
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = 1.0
	}
}

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate checks the configuration for errors and returns a descriptive
// error for the first problem found. It assumes defaults have already been
// applied.
func Validate(cfg *Config) error {
	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := validateUpstream(&cfg.Upstream); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if err := validatePool(&cfg.Pool); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if err := validateRecovery(&cfg.Recovery); err != nil {
		return fmt.Errorf("recovery: %w", err)
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen_address %q: %w", cfg.ListenAddress, err)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	return nil
}

func validateUpstream(cfg *UpstreamConfig) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must use http or https, got %q", u.Scheme)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if !strings.HasPrefix(cfg.ProbePath, "/") {
		return fmt.Errorf("probe_path must start with '/', got %q", cfg.ProbePath)
	}
	return nil
}

func validatePool(cfg *PoolConfig) error {
	if len(cfg.Keys) == 0 {
		return fmt.Errorf("at least one key is required")
	}
	seen := make(map[string]struct{}, len(cfg.Keys))
	for i, key := range cfg.Keys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("key at position %d is empty", i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate key at position %d", i)
		}
		seen[key] = struct{}{}
	}
	if cfg.MaxFailures < 1 {
		return fmt.Errorf("max_failures must be >= 1, got %d", cfg.MaxFailures)
	}
	if cfg.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be >= 1, got %d", cfg.MaxRetries)
	}
	if cfg.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative, got %d", cfg.RequestsPerMinute)
	}
	if cfg.RateWindow <= 0 {
		return fmt.Errorf("rate_window must be positive")
	}
	return nil
}

func validateRecovery(cfg *RecoveryConfig) error {
	if cfg.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive")
	}
	if cfg.MinDisabled < 0 {
		return fmt.Errorf("min_disabled must not be negative")
	}
	if cfg.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if cfg.ProbesPerSecond <= 0 {
		return fmt.Errorf("probes_per_second must be positive")
	}
	if cfg.ProbeBurst < 1 {
		return fmt.Errorf("probe_burst must be >= 1")
	}
	return nil
}

func validateStorage(cfg *StorageConfig) error {
	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.Path == "" {
			return fmt.Errorf("path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (valid: memory, sqlite)", cfg.Backend)
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Logging.Format)
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample_ratio must be in [0, 1], got %v", cfg.Tracing.SampleRatio)
	}
	return nil
}

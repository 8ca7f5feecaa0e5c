package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that behavior.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// PRISM_SECTION_FIELD (e.g., PRISM_SERVER_LISTEN_ADDRESS) and always take
// precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format PRISM_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("PRISM_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if d, ok := envDuration("PRISM_SERVER_SHUTDOWN_TIMEOUT"); ok {
		cfg.Server.ShutdownTimeout = d
	}

	if val := os.Getenv("PRISM_UPSTREAM_BASE_URL"); val != "" {
		cfg.Upstream.BaseURL = val
	}
	if d, ok := envDuration("PRISM_UPSTREAM_TIMEOUT"); ok {
		cfg.Upstream.Timeout = d
	}

	// Keys may be supplied as a comma-separated list so deployments can keep
	// credentials out of the config file entirely.
	if val := os.Getenv("PRISM_POOL_KEYS"); val != "" {
		parts := strings.Split(val, ",")
		keys := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				keys = append(keys, p)
			}
		}
		cfg.Pool.Keys = keys
	}
	if n, ok := envInt("PRISM_POOL_MAX_FAILURES"); ok {
		cfg.Pool.MaxFailures = n
	}
	if n, ok := envInt("PRISM_POOL_MAX_RETRIES"); ok {
		cfg.Pool.MaxRetries = n
	}
	if n, ok := envInt("PRISM_POOL_REQUESTS_PER_MINUTE"); ok {
		cfg.Pool.RequestsPerMinute = n
	}

	if d, ok := envDuration("PRISM_RECOVERY_CHECK_INTERVAL"); ok {
		cfg.Recovery.CheckInterval = d
	}
	if d, ok := envDuration("PRISM_RECOVERY_MIN_DISABLED"); ok {
		cfg.Recovery.MinDisabled = d
	}

	if val := os.Getenv("PRISM_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("PRISM_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	if val := os.Getenv("PRISM_AUTH_ACCESS_TOKENS"); val != "" {
		cfg.Auth.AccessTokens = strings.Split(val, ",")
	}

	if val := os.Getenv("PRISM_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("PRISM_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}

func envInt(name string) (int, bool) {
	val := os.Getenv(name)
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(name string) (time.Duration, bool) {
	val := os.Getenv(name)
	if val == "" {
		return 0, false
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, false
	}
	return d, true
}

// Package config provides configuration management for the Prism gateway.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention PRISM_SECTION_FIELD.
// For example:
//
//   - PRISM_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - PRISM_POOL_KEYS overrides pool.keys (comma-separated)
//   - PRISM_LOG_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Hot Reload
//
// Watcher observes the configuration file and re-parses it on change. The
// gateway uses this to rebuild the credential pool at runtime: keys present
// in both the old and new configuration keep their failure counts and
// quarantine status.
package config

// Prism is a credential-pool gateway for rate-limited, key-authenticated
// generative-content APIs.
//
// It fronts an upstream API with a pool of credentials, providing:
//   - Round-robin key rotation with per-key rate ceilings
//   - Automatic retry across keys on key-specific failures
//   - Quarantine of failing keys and background recovery probing
//   - Pool state persistence across restarts
//   - Prometheus metrics and OpenTelemetry tracing
//
// Usage:
//
//	# Start the gateway with default configuration
//	prism run
//
//	# Start with custom configuration file
//	prism run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	prism validate
//
//	# List configured keys (masked)
//	prism keys
//
//	# Show version information
//	prism version
package main

func main() {
	Execute()
}

// Package tracing wires OpenTelemetry span export for the gateway.
//
// New installs the global tracer provider: an OTLP gRPC exporter with
// parent-based ratio sampling when tracing is enabled, a no-op provider
// otherwise. Instrumented packages pick up the tracer through
// otel.Tracer, so nothing else is plumbed through constructors.
package tracing

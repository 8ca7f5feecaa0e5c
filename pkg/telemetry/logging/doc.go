// Package logging configures the process-wide structured logger.
//
// The gateway logs with log/slog throughout. New builds the handler from
// configuration (level, json or text, optional source locations) and
// installs it as the slog default so library code that falls back to
// slog.Default lands in the same stream.
//
// Credentials never reach a log record in full; call sites mask them with
// keypool.MaskKey before attaching them as attributes.
package logging

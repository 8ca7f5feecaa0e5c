// Package server exposes the gateway over HTTP.
//
// Routes:
//
//	POST /v1/generate     relay a generation request through the pool
//	GET  /v1/keys         pool status, keys masked and grouped by health
//	POST /v1/keys/reset   reactivate one key or the whole pool
//	GET  /healthz         liveness
//	GET  /metrics         Prometheus scrape
//
// The /v1 routes sit behind bearer token auth when tokens are configured.
// Dispatch errors map onto gateway statuses: 503 when no credential is
// eligible, 502 when the retry budget is spent, and the upstream's own
// status for requests it rejected as malformed.
package server

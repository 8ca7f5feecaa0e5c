// Package metrics exposes the gateway's Prometheus instrumentation.
//
// Collector owns a private registry and the request, attempt, probe and key
// lifecycle instruments. PoolCollector derives pool composition gauges from
// a snapshot at scrape time, so status gauges never drift from the store.
//
// A nil *Collector is a no-op recorder; wiring code passes nil when metrics
// are disabled and call sites stay unconditional.
package metrics

// Package recovery returns quarantined keys to the pool.
//
// The prober wakes on a fixed cadence, snapshots the pool, and issues a
// cheap authenticated probe for each key that has been disabled for at
// least the configured minimum. Probes across a cycle share a token
// bucket so recovery traffic stays polite toward the upstream. A passing
// probe reactivates the key; a failing probe restarts its quarantine
// clock.
package recovery

// Package keypool manages a rotating pool of upstream credentials.
//
// # Overview
//
// The pool has two halves. Store owns per-key lifecycle state: consecutive
// failure counts, quarantine, last use. Selector walks the pool with an
// atomic round-robin cursor and hands out the next key that is active,
// under its rate ceiling, and not excluded by the caller.
//
//	store, err := keypool.NewStore(ctx, keys, 3, backend, logger)
//	selector := keypool.NewSelector(store, limiter)
//
//	key, err := selector.Next(nil)
//	if errors.Is(err, keypool.ErrPoolExhausted) {
//	    // Every key is disabled, rate limited, or excluded
//	}
//
// # Lifecycle
//
// A key is active until it accumulates the configured number of
// consecutive key-specific failures, at which point the store disables it.
// Any successful use resets the counter. Disabled keys stay out of
// rotation until a recovery probe or an operator reset reactivates them.
//
// # Concurrency
//
// State transitions lock only the key they touch. The pool-wide lock
// guards the key set itself and is held only for lookups and reloads, so
// dispatch on one key never waits on bookkeeping for another.
package keypool

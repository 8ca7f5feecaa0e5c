// Package dispatch orchestrates request relay over the key pool.
//
// # Retry Policy
//
// A request consumes at most MaxRetries upstream attempts, each on a key
// not yet tried for this request. The failure class decides what happens
// next:
//
//   - key-specific (auth, quota, server): charge the key's failure
//     counter, exclude it, try the next key
//   - transient (timeout, network): exclude the key without penalty, try
//     the next key
//   - client (malformed request): fail immediately, no key can serve it
//
// Running out of eligible keys yields a *PoolExhaustedError; spending the
// attempt budget yields a *RetriesExhaustedError carrying the last
// failure. Context cancellation is honored between and during attempts,
// with bookkeeping for the completed attempt applied either way.
package dispatch

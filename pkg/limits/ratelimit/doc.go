// Package ratelimit provides per-key sliding window rate limiting.
//
// # Overview
//
// KeyLimiter tracks a rolling request count per credential and answers one
// question: may one more request be issued on this key right now without
// exceeding its ceiling?
//
//	limiter := ratelimit.NewKeyLimiter(60, time.Minute)
//	if limiter.Allow(key) {
//	    // Request admitted and recorded
//	} else {
//	    // Ceiling reached; pick another key
//	}
//
// # Sliding Window
//
// The window is evaluated at call time over the trailing span, not over
// fixed buckets. A fixed-bucket counter permits up to 2x the ceiling across
// a boundary (a burst at the end of one bucket plus a burst at the start of
// the next); the sliding evaluation smooths those edges.
//
// # Concurrency
//
// Each key's window carries its own mutex, so concurrent dispatch attempts
// on different keys never serialize against each other.
package ratelimit

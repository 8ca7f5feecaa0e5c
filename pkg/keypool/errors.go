package keypool

import "errors"

var (
	// ErrPoolExhausted is returned by Selector.Next when no key in the
	// pool is eligible: every key is disabled, rate limited, or excluded
	// by the caller.
	ErrPoolExhausted = errors.New("keypool: no eligible key available")

	// ErrUnknownKey is returned when an operation names a key that is
	// not part of the pool.
	ErrUnknownKey = errors.New("keypool: unknown key")

	// ErrEmptyPool is returned when a store is constructed or reloaded
	// with no keys at all.
	ErrEmptyPool = errors.New("keypool: pool must contain at least one key")
)

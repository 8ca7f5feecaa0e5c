package dispatch

import (
	"errors"
	"fmt"

	"prism-gw/prism/pkg/keypool"
)

// ErrRetriesExhausted is matched by errors.Is against the error returned
// when every permitted attempt failed.
var ErrRetriesExhausted = errors.New("dispatch: retry budget exhausted")

// PoolExhaustedError is returned when no eligible key exists for the next
// attempt. Attempts records how many upstream calls were made before the
// pool ran dry; zero means the request never reached the upstream. When
// earlier attempts failed, LastErr holds the final upstream failure.
type PoolExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *PoolExhaustedError) Error() string {
	if e.Attempts == 0 {
		return "dispatch: no eligible key in pool"
	}
	return fmt.Sprintf("dispatch: pool exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *PoolExhaustedError) Unwrap() []error {
	if e.LastErr == nil {
		return []error{keypool.ErrPoolExhausted}
	}
	return []error{keypool.ErrPoolExhausted, e.LastErr}
}

// RetriesExhaustedError is returned when the attempt budget was spent
// without a success. LastErr is the failure from the final attempt.
type RetriesExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("dispatch: all %d attempts failed: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhaustedError) Unwrap() []error {
	if e.LastErr == nil {
		return []error{ErrRetriesExhausted}
	}
	return []error{ErrRetriesExhausted, e.LastErr}
}

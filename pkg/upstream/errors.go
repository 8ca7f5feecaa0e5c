package upstream

import (
	"errors"
	"fmt"
)

// Sentinel errors for the upstream failure classes. Typed errors below wrap
// these so callers can branch with errors.Is without caring which concrete
// type carried the detail.
var (
	// ErrAuth marks a credential rejection (HTTP 401 or 403).
	ErrAuth = errors.New("upstream: credential rejected")

	// ErrQuota marks a rate or quota rejection (HTTP 429).
	ErrQuota = errors.New("upstream: quota exceeded")

	// ErrServer marks an upstream server failure (HTTP 5xx).
	ErrServer = errors.New("upstream: server error")

	// ErrClient marks a request the upstream rejected as malformed
	// (HTTP 4xx other than auth and quota). Retrying with another key
	// cannot help.
	ErrClient = errors.New("upstream: client error")

	// ErrTimeout marks an attempt that exceeded its deadline.
	ErrTimeout = errors.New("upstream: attempt timed out")

	// ErrNetwork marks a transport failure before a response arrived.
	ErrNetwork = errors.New("upstream: network error")
)

// StatusError is an upstream HTTP response with a non-success status. Its
// class is derived from the status code and exposed through errors.Is
// against the sentinels above.
type StatusError struct {
	// StatusCode is the HTTP status returned by the upstream.
	StatusCode int

	// Body is a truncated copy of the response body, kept for logs.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps the status code onto its class sentinel.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return ErrAuth
	case e.StatusCode == 429:
		return ErrQuota
	case e.StatusCode >= 500:
		return ErrServer
	case e.StatusCode >= 400:
		return ErrClient
	default:
		return nil
	}
}

// TransportError is a failure below the HTTP layer: connection refused,
// DNS, reset, or a deadline that expired mid-attempt.
type TransportError struct {
	// Timeout distinguishes deadline expiry from other transport faults.
	Timeout bool

	// Err is the underlying transport error.
	Err error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream attempt timed out: %v", e.Err)
	}
	return fmt.Sprintf("upstream transport failure: %v", e.Err)
}

// Unwrap exposes both the class sentinel and the underlying transport
// error, so errors.Is matches either.
func (e *TransportError) Unwrap() []error {
	sentinel := ErrNetwork
	if e.Timeout {
		sentinel = ErrTimeout
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

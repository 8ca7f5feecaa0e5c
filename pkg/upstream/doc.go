// Package upstream issues calls against the rate-limited, key-authenticated
// generative API the gateway fronts.
//
// # Overview
//
// Caller is the seam between dispatch and the wire: one method relays a
// generation request on a given credential, one probes a credential's
// validity. HTTPCaller is the production implementation, speaking the
// Gemini-style REST surface.
//
// # Error Classification
//
// Every failed call comes back as a *StatusError or a *TransportError,
// both of which unwrap to class sentinels (ErrAuth, ErrQuota, ErrServer,
// ErrClient, ErrTimeout, ErrNetwork). The IsKeySpecific, IsTransient and
// IsClient helpers give dispatch the three-way split its retry policy
// needs: penalize the key, spare the key, or give up.
package upstream

package storage

import (
	"context"
	"time"
)

// Backend defines the interface for key-state persistence.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Save persists the state for a key. Existing state is replaced.
	Save(ctx context.Context, state *KeyState) error

	// Load retrieves the state for a key identifier.
	// Returns nil with no error if no state exists.
	Load(ctx context.Context, identifier string) (*KeyState, error)

	// LoadAll returns the persisted state for every known key.
	// Returns an empty slice if nothing has been persisted.
	LoadAll(ctx context.Context) ([]*KeyState, error)

	// Delete removes the state for a key identifier. No-op if absent.
	Delete(ctx context.Context, identifier string) error

	// Close releases any resources held by the backend.
	// The backend must not be used after Close.
	Close() error
}

// KeyState is the persisted durable state for a single credential. Only what
// the pool needs to survive a restart is stored: the quarantine decision and
// the counters that led to it. Rate windows are deliberately not persisted;
// they decay within a minute anyway.
type KeyState struct {
	// Identifier is the credential string. It is stored verbatim so state
	// can be re-attached after a restart; the store file must be protected
	// accordingly.
	Identifier string

	// Status is the persisted lifecycle status ("active", "rate_limited",
	// "disabled").
	Status string

	// ConsecutiveFailures is the failure counter at persist time.
	ConsecutiveFailures int

	// DisabledAt is when the key entered quarantine (zero if not disabled).
	DisabledAt time.Time

	// LastUsedAt is when the key last served a successful call.
	LastUsedAt time.Time

	// UpdatedAt is when this state was last written.
	UpdatedAt time.Time
}

package keypool

import (
	"sync"
	"time"
)

// Status describes the lifecycle state of a pooled credential.
type Status uint8

const (
	// StatusActive marks a key that is eligible for selection.
	StatusActive Status = iota

	// StatusRateLimited marks a key whose trailing request window is at
	// its ceiling. The state is transient and clears on the next
	// successful selection.
	StatusRateLimited

	// StatusDisabled marks a key withdrawn from rotation after reaching
	// the consecutive failure threshold or an explicit Disable call.
	// Only the recovery prober or an operator reset brings it back.
	StatusDisabled
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRateLimited:
		return "rate_limited"
	case StatusDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ParseStatus converts a persisted status name back into a Status.
// Unrecognized names map to StatusActive so a corrupted row degrades to a
// key that rotation will exercise and re-classify on its own.
func ParseStatus(name string) Status {
	switch name {
	case "rate_limited":
		return StatusRateLimited
	case "disabled":
		return StatusDisabled
	default:
		return StatusActive
	}
}

// KeyRecord is a point-in-time copy of one pooled credential's state.
// Mutation happens only through Store methods; a KeyRecord handed out by
// Snapshot or Get never changes after the fact.
type KeyRecord struct {
	// Identifier is the credential itself.
	Identifier string

	// Position is the key's ordinal in configuration order. Reload
	// renumbers the pool, so positions are stable only between reloads.
	Position int

	// Status is the lifecycle state at snapshot time.
	Status Status

	// ConsecutiveFailures counts key-specific failures since the last
	// successful use. Reset to zero by MarkUsed and Reactivate.
	ConsecutiveFailures int

	// DisabledAt is the time the key last entered StatusDisabled.
	// Zero for keys that have never been disabled.
	DisabledAt time.Time

	// LastUsedAt is the time of the last successful use.
	LastUsedAt time.Time
}

// record is the internal mutable counterpart of KeyRecord. Each record
// carries its own mutex so state transitions on different keys never
// contend with each other.
type record struct {
	mu         sync.Mutex
	id         string
	position   int
	status     Status
	failures   int
	disabledAt time.Time
	lastUsedAt time.Time
}

func (r *record) snapshotLocked() KeyRecord {
	return KeyRecord{
		Identifier:          r.id,
		Position:            r.position,
		Status:              r.status,
		ConsecutiveFailures: r.failures,
		DisabledAt:          r.disabledAt,
		LastUsedAt:          r.lastUsedAt,
	}
}

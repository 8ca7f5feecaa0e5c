package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend implements Backend with an in-memory map. State does not
// survive restarts; it exists so the pool's persistence hooks have a uniform
// target in tests and in deployments that do not want a state file.
type MemoryBackend struct {
	mu     sync.RWMutex
	states map[string]*KeyState
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		states: make(map[string]*KeyState),
	}
}

// Save stores a copy of the state.
func (m *MemoryBackend) Save(_ context.Context, state *KeyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *state
	cp.UpdatedAt = time.Now()
	m.states[state.Identifier] = &cp
	return nil
}

// Load returns a copy of the state for the identifier, or nil if absent.
func (m *MemoryBackend) Load(_ context.Context, identifier string) (*KeyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[identifier]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

// LoadAll returns copies of all stored states.
func (m *MemoryBackend) LoadAll(_ context.Context) ([]*KeyState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*KeyState, 0, len(m.states))
	for _, state := range m.states {
		cp := *state
		out = append(out, &cp)
	}
	return out, nil
}

// Delete removes the state for the identifier.
func (m *MemoryBackend) Delete(_ context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, identifier)
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}

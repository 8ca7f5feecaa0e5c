package keypool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"prism-gw/prism/pkg/keypool/storage"
)

// Store owns the credential pool. It holds one record per configured key
// and serializes state transitions per key, never across the pool: two
// goroutines updating different keys proceed in parallel.
//
// Durable state transitions (failure counts, quarantine, reactivation) are
// written through to the configured storage backend. Persistence failures
// are logged and do not fail the dispatch path; the in-memory state is
// authoritative for a running process.
type Store struct {
	maxFailures int
	backend     storage.Backend
	logger      *slog.Logger
	now         func() time.Time

	// mu guards the records slice and index, not the records themselves.
	// Held briefly for lookups and for Reload's pool swap.
	mu      sync.RWMutex
	records []*record
	byID    map[string]*record
}

// NewStore builds a pool over the given keys, restoring any persisted state
// from the backend. Keys with no persisted state start active with zero
// failures. Persisted state for keys no longer configured is removed.
func NewStore(ctx context.Context, keys []string, maxFailures int, backend storage.Backend, logger *slog.Logger) (*Store, error) {
	if len(keys) == 0 {
		return nil, ErrEmptyPool
	}
	if maxFailures < 1 {
		return nil, fmt.Errorf("keypool: max failures must be at least 1, got %d", maxFailures)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		maxFailures: maxFailures,
		backend:     backend,
		logger:      logger,
		now:         time.Now,
		byID:        make(map[string]*record, len(keys)),
	}

	persisted, err := s.loadPersisted(ctx)
	if err != nil {
		return nil, err
	}

	for i, key := range keys {
		if _, dup := s.byID[key]; dup {
			return nil, fmt.Errorf("keypool: duplicate key %s", MaskKey(key))
		}
		rec := s.newRecord(key, persisted[key])
		rec.position = i
		s.records = append(s.records, rec)
		s.byID[key] = rec
	}

	s.pruneOrphans(ctx, persisted)
	return s, nil
}

func (s *Store) loadPersisted(ctx context.Context) (map[string]*storage.KeyState, error) {
	if s.backend == nil {
		return nil, nil
	}
	states, err := s.backend.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("keypool: restore persisted state: %w", err)
	}
	byID := make(map[string]*storage.KeyState, len(states))
	for _, st := range states {
		byID[st.Identifier] = st
	}
	return byID, nil
}

func (s *Store) newRecord(key string, st *storage.KeyState) *record {
	rec := &record{id: key, status: StatusActive}
	if st == nil {
		return rec
	}
	rec.status = ParseStatus(st.Status)
	if rec.status == StatusRateLimited {
		// Rate windows are not persisted, so a restored rate_limited
		// status has nothing backing it. Start active and let the
		// limiter re-derive it.
		rec.status = StatusActive
	}
	rec.failures = st.ConsecutiveFailures
	rec.disabledAt = st.DisabledAt
	rec.lastUsedAt = st.LastUsedAt
	return rec
}

// pruneOrphans deletes persisted state for keys absent from the pool.
func (s *Store) pruneOrphans(ctx context.Context, persisted map[string]*storage.KeyState) {
	if s.backend == nil {
		return
	}
	for id := range persisted {
		if _, ok := s.byID[id]; ok {
			continue
		}
		if err := s.backend.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to prune persisted state for removed key",
				slog.String("key", MaskKey(id)),
				slog.Any("error", err))
		}
	}
}

// Len returns the number of keys in the pool.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// MaxFailures returns the consecutive failure threshold that disables a key.
func (s *Store) MaxFailures() int {
	return s.maxFailures
}

// Get returns a snapshot of one key's state.
func (s *Store) Get(key string) (KeyRecord, bool) {
	rec := s.lookup(key)
	if rec == nil {
		return KeyRecord{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.snapshotLocked(), true
}

// Snapshot returns a point-in-time copy of every key's state, in pool
// order. Each record is locked individually, so the snapshot is consistent
// per key but not across keys.
func (s *Store) Snapshot() []KeyRecord {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	out := make([]KeyRecord, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		out = append(out, rec.snapshotLocked())
		rec.mu.Unlock()
	}
	return out
}

// MarkUsed records a successful call on the key: the failure counter resets
// to zero and the key returns to active regardless of its prior state.
func (s *Store) MarkUsed(ctx context.Context, key string) error {
	rec := s.lookup(key)
	if rec == nil {
		return ErrUnknownKey
	}

	rec.mu.Lock()
	rec.status = StatusActive
	rec.failures = 0
	rec.lastUsedAt = s.now()
	state := rec.persistable()
	rec.mu.Unlock()

	s.persist(ctx, state)
	return nil
}

// MarkFailed records a key-specific failure. The failure counter increments
// and, once it reaches the threshold, the key is disabled. Marking an
// already disabled key refreshes its quarantine timestamp, which pushes out
// its next recovery probe.
//
// The returned bool reports whether this call disabled the key.
func (s *Store) MarkFailed(ctx context.Context, key string) (bool, error) {
	rec := s.lookup(key)
	if rec == nil {
		return false, ErrUnknownKey
	}

	rec.mu.Lock()
	tripped := false
	if rec.status == StatusDisabled {
		rec.disabledAt = s.now()
	} else {
		rec.failures++
		if rec.failures >= s.maxFailures {
			rec.status = StatusDisabled
			rec.disabledAt = s.now()
			tripped = true
		}
	}
	state := rec.persistable()
	failures := rec.failures
	rec.mu.Unlock()

	if tripped {
		s.logger.Warn("key disabled after consecutive failures",
			slog.String("key", MaskKey(key)),
			slog.Int("failures", failures))
	}
	s.persist(ctx, state)
	return tripped, nil
}

// Disable withdraws a key from rotation immediately, regardless of its
// failure count.
func (s *Store) Disable(ctx context.Context, key string) error {
	rec := s.lookup(key)
	if rec == nil {
		return ErrUnknownKey
	}

	rec.mu.Lock()
	rec.status = StatusDisabled
	rec.disabledAt = s.now()
	state := rec.persistable()
	rec.mu.Unlock()

	s.logger.Info("key disabled", slog.String("key", MaskKey(key)))
	s.persist(ctx, state)
	return nil
}

// Reactivate returns a key to active with a zeroed failure counter. Used by
// the recovery prober after a successful probe and by the operator reset.
func (s *Store) Reactivate(ctx context.Context, key string) error {
	rec := s.lookup(key)
	if rec == nil {
		return ErrUnknownKey
	}

	rec.mu.Lock()
	rec.status = StatusActive
	rec.failures = 0
	state := rec.persistable()
	rec.mu.Unlock()

	s.logger.Info("key reactivated", slog.String("key", MaskKey(key)))
	s.persist(ctx, state)
	return nil
}

// ResetAll reactivates every key in the pool.
func (s *Store) ResetAll(ctx context.Context) int {
	s.mu.RLock()
	records := s.records
	s.mu.RUnlock()

	reset := 0
	for _, rec := range records {
		rec.mu.Lock()
		changed := rec.status != StatusActive || rec.failures != 0
		rec.status = StatusActive
		rec.failures = 0
		state := rec.persistable()
		rec.mu.Unlock()

		if changed {
			reset++
			s.persist(ctx, state)
		}
	}
	if reset > 0 {
		s.logger.Info("pool reset", slog.Int("keys_reset", reset))
	}
	return reset
}

// Reload replaces the pool's key set. Keys present in both the old and new
// set keep their state, including quarantine; new keys start active;
// removed keys are dropped along with their persisted state. Selections in
// flight against the old pool complete against the old records.
func (s *Store) Reload(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return ErrEmptyPool
	}

	newRecords := make([]*record, 0, len(keys))
	newByID := make(map[string]*record, len(keys))

	s.mu.Lock()
	oldByID := s.byID
	for _, key := range keys {
		if _, dup := newByID[key]; dup {
			s.mu.Unlock()
			return fmt.Errorf("keypool: duplicate key %s", MaskKey(key))
		}
		if rec, ok := oldByID[key]; ok {
			rec.mu.Lock()
			rec.position = len(newRecords)
			rec.mu.Unlock()
			newRecords = append(newRecords, rec)
			newByID[key] = rec
			continue
		}
		rec := &record{id: key, position: len(newRecords), status: StatusActive}
		newRecords = append(newRecords, rec)
		newByID[key] = rec
	}
	s.records = newRecords
	s.byID = newByID
	s.mu.Unlock()

	added, removed := 0, 0
	for _, key := range keys {
		if _, ok := oldByID[key]; !ok {
			added++
		}
	}
	for id := range oldByID {
		if _, ok := newByID[id]; !ok {
			removed++
			if s.backend != nil {
				if err := s.backend.Delete(ctx, id); err != nil {
					s.logger.Warn("failed to delete persisted state for removed key",
						slog.String("key", MaskKey(id)),
						slog.Any("error", err))
				}
			}
		}
	}
	s.logger.Info("pool reloaded",
		slog.Int("keys", len(keys)),
		slog.Int("added", added),
		slog.Int("removed", removed))
	return nil
}

// RemovedKeys reports which of the given identifiers are no longer in the
// pool. Callers use it to release per-key resources after a Reload.
func (s *Store) RemovedKeys(candidates []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var gone []string
	for _, id := range candidates {
		if _, ok := s.byID[id]; !ok {
			gone = append(gone, id)
		}
	}
	return gone
}

func (s *Store) lookup(key string) *record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[key]
}

func (s *Store) persist(ctx context.Context, state *storage.KeyState) {
	if s.backend == nil {
		return
	}
	if err := s.backend.Save(ctx, state); err != nil {
		s.logger.Warn("failed to persist key state",
			slog.String("key", MaskKey(state.Identifier)),
			slog.Any("error", err))
	}
}

func (r *record) persistable() *storage.KeyState {
	return &storage.KeyState{
		Identifier:          r.id,
		Status:              r.status.String(),
		ConsecutiveFailures: r.failures,
		DisabledAt:          r.disabledAt,
		LastUsedAt:          r.lastUsedAt,
		UpdatedAt:           time.Now(),
	}
}

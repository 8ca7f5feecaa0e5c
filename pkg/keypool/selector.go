package keypool

import "sync/atomic"

// Limiter answers whether one more request may be issued on a key right
// now. A nil Limiter admits everything.
type Limiter interface {
	// Allow reports whether the key is under its request ceiling and, if
	// so, records the admission.
	Allow(key string) bool
}

// Selector hands out keys in round-robin order, skipping keys that are
// disabled, over their rate ceiling, or excluded by the caller. The cursor
// is a single atomic counter, so concurrent selections never block each
// other and the rotation stays fair under load.
type Selector struct {
	store   *Store
	limiter Limiter
	cursor  atomic.Uint64
}

// NewSelector builds a selector over the store. limiter may be nil, in
// which case rate ceilings are not enforced.
func NewSelector(store *Store, limiter Limiter) *Selector {
	return &Selector{store: store, limiter: limiter}
}

// Next returns the next eligible key. The scan starts one past the
// previous selection and visits each key at most once, so a full rotation
// with nothing eligible returns ErrPoolExhausted rather than spinning.
//
// exclude lists keys the caller has already tried this request; pass nil
// when there are none. An admitted key has its rate window charged, so the
// caller is expected to actually issue the request.
func (s *Selector) Next(exclude map[string]struct{}) (string, error) {
	s.store.mu.RLock()
	records := s.store.records
	s.store.mu.RUnlock()

	n := uint64(len(records))
	if n == 0 {
		return "", ErrPoolExhausted
	}

	start := s.cursor.Add(1) - 1
	for i := uint64(0); i < n; i++ {
		rec := records[(start+i)%n]
		if _, skip := exclude[rec.id]; skip {
			continue
		}
		if key, ok := s.tryAdmit(rec); ok {
			if i > 0 {
				// Keys skipped on the way here stay behind the cursor,
				// so the next selection continues from just past the
				// chosen key instead of revisiting it. The swap is
				// skipped when a concurrent selection already moved on.
				s.cursor.CompareAndSwap(start+1, start+i+1)
			}
			return key, nil
		}
	}
	return "", ErrPoolExhausted
}

// tryAdmit checks one record's eligibility under its own lock and charges
// the rate window on success.
func (s *Selector) tryAdmit(rec *record) (string, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.status == StatusDisabled {
		return "", false
	}
	if s.limiter != nil && !s.limiter.Allow(rec.id) {
		// Over the ceiling. Surface the condition in snapshots; the
		// state clears on the key's next successful use.
		rec.status = StatusRateLimited
		return "", false
	}
	if rec.status == StatusRateLimited {
		rec.status = StatusActive
	}
	return rec.id, true
}

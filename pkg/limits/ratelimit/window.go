package ratelimit

import (
	"sync"
	"time"
)

// window tracks the request instants for a single key within the trailing
// rate window. Entries older than the window are pruned lazily whenever the
// window is consulted, so memory stays bounded by the ceiling.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// pruneLocked drops all entries at or before the cutoff.
// Caller must hold the window lock.
func (w *window) pruneLocked(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		// Shift in place rather than re-slicing so the backing array does
		// not grow without bound as the head advances.
		n := copy(w.stamps, w.stamps[i:])
		w.stamps = w.stamps[:n]
	}
}

// tryAdmit prunes expired entries and, if the remaining count is below the
// ceiling, records now and reports true. On denial nothing is recorded.
func (w *window) tryAdmit(now time.Time, span time.Duration, ceiling int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now.Add(-span))
	if len(w.stamps) >= ceiling {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// count prunes expired entries and returns the remaining count.
func (w *window) count(now time.Time, span time.Duration) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pruneLocked(now.Add(-span))
	return len(w.stamps)
}

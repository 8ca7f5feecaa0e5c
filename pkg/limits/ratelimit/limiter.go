package ratelimit

import (
	"sync"
	"time"
)

// KeyLimiter enforces a per-key request ceiling over a trailing time window.
//
// The window is a true sliding window evaluated at call time: each admitted
// request records its instant, and admission counts every instant within the
// trailing span. Bursts at window edges are therefore smoothed rather than
// double-permitted, unlike fixed-bucket counters that reset on a boundary.
//
// Each key has its own window with its own lock; traffic on unrelated keys
// never contends. The map itself is guarded by an RWMutex taken only to look
// up or create a key's window.
type KeyLimiter struct {
	ceiling int
	span    time.Duration

	mu      sync.RWMutex
	windows map[string]*window

	// now is the clock source, replaceable in tests.
	now func() time.Time
}

// NewKeyLimiter creates a limiter admitting at most ceiling requests per key
// within the trailing span. A ceiling of zero or less disables limiting:
// Allow always admits.
func NewKeyLimiter(ceiling int, span time.Duration) *KeyLimiter {
	if span <= 0 {
		span = time.Minute
	}
	return &KeyLimiter{
		ceiling: ceiling,
		span:    span,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow reports whether one more request may be issued on the key without
// exceeding the ceiling, recording the request instant iff admitted. Denial
// has no side effect, so callers may treat Allow both as an advisory check
// while scanning candidates and as the authoritative admission gate.
func (l *KeyLimiter) Allow(key string) bool {
	if l.ceiling <= 0 {
		return true
	}
	return l.keyWindow(key).tryAdmit(l.now(), l.span, l.ceiling)
}

// Usage returns the number of admitted requests currently inside the key's
// trailing window.
func (l *KeyLimiter) Usage(key string) int {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if !ok {
		return 0
	}
	return w.count(l.now(), l.span)
}

// Ceiling returns the configured per-key ceiling (0 means unlimited).
func (l *KeyLimiter) Ceiling() int {
	return l.ceiling
}

// Forget discards the window for a key, releasing its memory. Used when a
// key is removed from the pool on configuration reload.
func (l *KeyLimiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Reset discards all windows. Primarily for tests.
func (l *KeyLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string]*window)
}

// keyWindow returns the window for a key, creating it on first use.
func (l *KeyLimiter) keyWindow(key string) *window {
	l.mu.RLock()
	w, ok := l.windows[key]
	l.mu.RUnlock()
	if ok {
		return w
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.windows[key]; ok {
		return w
	}
	w = &window{stamps: make([]time.Time, 0, l.ceiling)}
	l.windows[key] = w
	return w
}

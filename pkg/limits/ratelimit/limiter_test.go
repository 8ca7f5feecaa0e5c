package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAllowUnderCeiling(t *testing.T) {
	limiter := NewKeyLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !limiter.Allow("key-a") {
			t.Fatalf("request %d denied below ceiling", i+1)
		}
	}
	if limiter.Allow("key-a") {
		t.Fatal("request admitted above ceiling")
	}
	if got := limiter.Usage("key-a"); got != 3 {
		t.Errorf("Usage() = %d, want 3", got)
	}
}

func TestAllowPerKeyIsolation(t *testing.T) {
	limiter := NewKeyLimiter(1, time.Minute)

	if !limiter.Allow("key-a") {
		t.Fatal("first request on key-a denied")
	}
	if limiter.Allow("key-a") {
		t.Fatal("second request on key-a admitted")
	}
	if !limiter.Allow("key-b") {
		t.Fatal("key-b denied; windows must be independent")
	}
}

func TestSlidingWindowExpiry(t *testing.T) {
	current := time.Now()
	limiter := NewKeyLimiter(2, time.Minute)
	limiter.now = func() time.Time { return current }

	if !limiter.Allow("key-a") || !limiter.Allow("key-a") {
		t.Fatal("initial requests denied")
	}
	if limiter.Allow("key-a") {
		t.Fatal("request admitted at ceiling")
	}

	// Advance past the window; both stamps should age out.
	current = current.Add(time.Minute + time.Second)
	if !limiter.Allow("key-a") {
		t.Fatal("request denied after window elapsed")
	}
	if got := limiter.Usage("key-a"); got != 1 {
		t.Errorf("Usage() = %d, want 1 after expiry", got)
	}
}

func TestSlidingWindowPartialExpiry(t *testing.T) {
	current := time.Now()
	limiter := NewKeyLimiter(2, time.Minute)
	limiter.now = func() time.Time { return current }

	limiter.Allow("key-a")
	current = current.Add(40 * time.Second)
	limiter.Allow("key-a")

	// First stamp is 40s old, second is fresh; ceiling reached.
	if limiter.Allow("key-a") {
		t.Fatal("request admitted at ceiling")
	}

	// 25s later the first stamp (now 65s old) expires but the second
	// (25s old) does not. Exactly one slot frees up.
	current = current.Add(25 * time.Second)
	if !limiter.Allow("key-a") {
		t.Fatal("request denied after oldest stamp expired")
	}
	if limiter.Allow("key-a") {
		t.Fatal("request admitted with window full again")
	}
}

func TestDisabledLimiter(t *testing.T) {
	limiter := NewKeyLimiter(0, time.Minute)

	for i := 0; i < 1000; i++ {
		if !limiter.Allow("key-a") {
			t.Fatal("disabled limiter must admit everything")
		}
	}
}

func TestForget(t *testing.T) {
	limiter := NewKeyLimiter(1, time.Minute)

	limiter.Allow("key-a")
	if limiter.Allow("key-a") {
		t.Fatal("request admitted at ceiling")
	}

	limiter.Forget("key-a")
	if !limiter.Allow("key-a") {
		t.Fatal("request denied after Forget")
	}
}

func TestConcurrentAdmission(t *testing.T) {
	const ceiling = 50
	limiter := NewKeyLimiter(ceiling, time.Minute)

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("shared") {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := admitted.Load(); got != ceiling {
		t.Errorf("admitted %d requests, want exactly %d", got, ceiling)
	}
}

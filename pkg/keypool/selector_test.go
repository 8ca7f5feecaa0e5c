package keypool

import (
	"context"
	"errors"
	"testing"
)

// denyListLimiter denies the keys it holds and admits everything else.
type denyListLimiter struct {
	denied map[string]bool
}

func (l *denyListLimiter) Allow(key string) bool {
	return !l.denied[key]
}

func TestNextRoundRobin(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222", "key-cccc-3333"}
	store := newTestStore(t, keys, 3, nil)
	selector := NewSelector(store, nil)

	// Two full rotations must visit every key exactly twice, in order.
	seen := make(map[string]int)
	var order []string
	for i := 0; i < 2*len(keys); i++ {
		key, err := selector.Next(nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		seen[key]++
		order = append(order, key)
	}

	for _, key := range keys {
		if seen[key] != 2 {
			t.Errorf("key %s selected %d times, want 2", MaskKey(key), seen[key])
		}
	}
	for i := len(keys); i < len(order); i++ {
		if order[i] != order[i-len(keys)] {
			t.Errorf("rotation order drifted: position %d got %s, want %s",
				i, MaskKey(order[i]), MaskKey(order[i-len(keys)]))
		}
	}
}

func TestNextSkipsDisabled(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222", "key-cccc-3333"}
	store := newTestStore(t, keys, 1, nil)
	selector := NewSelector(store, nil)

	store.MarkFailed(context.Background(), "key-bbbb-2222")

	for i := 0; i < 10; i++ {
		key, err := selector.Next(nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if key == "key-bbbb-2222" {
			t.Fatal("disabled key was selected")
		}
	}
}

func TestNextSkipsRateLimited(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222"}
	store := newTestStore(t, keys, 3, nil)
	limiter := &denyListLimiter{denied: map[string]bool{"key-aaaa-1111": true}}
	selector := NewSelector(store, limiter)

	for i := 0; i < 4; i++ {
		key, err := selector.Next(nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if key != "key-bbbb-2222" {
			t.Fatalf("Next() = %s, want the only admitted key", MaskKey(key))
		}
	}

	// The denied key is surfaced as rate limited in snapshots.
	rec, _ := store.Get("key-aaaa-1111")
	if rec.Status != StatusRateLimited {
		t.Errorf("denied key status = %v, want rate_limited", rec.Status)
	}

	// Once the ceiling clears the key rejoins rotation and sheds the
	// transient status.
	limiter.denied["key-aaaa-1111"] = false
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		key, err := selector.Next(nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		seen[key] = true
	}
	if !seen["key-aaaa-1111"] {
		t.Error("recovered key not selected after ceiling cleared")
	}
	rec, _ = store.Get("key-aaaa-1111")
	if rec.Status != StatusActive {
		t.Errorf("recovered key status = %v, want active", rec.Status)
	}
}

func TestNextRotationFairWithDisabledKey(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222", "key-cccc-3333"}
	store := newTestStore(t, keys, 1, nil)
	selector := NewSelector(store, nil)

	store.MarkFailed(context.Background(), "key-aaaa-1111")

	// With one key out of rotation the survivors must still alternate
	// evenly; a cursor that only steps by one would hand out the key
	// after the gap twice as often.
	seen := make(map[string]int)
	var order []string
	for i := 0; i < 6; i++ {
		key, err := selector.Next(nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		seen[key]++
		order = append(order, key)
	}

	for _, key := range []string{"key-bbbb-2222", "key-cccc-3333"} {
		if seen[key] != 3 {
			t.Errorf("key %s selected %d times, want 3", MaskKey(key), seen[key])
		}
	}
	for i := 1; i < len(order); i++ {
		if order[i] == order[i-1] {
			t.Errorf("key %s selected twice in a row at position %d", MaskKey(order[i]), i)
		}
	}
}

func TestNextHonorsExclusions(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222", "key-cccc-3333"}
	store := newTestStore(t, keys, 3, nil)
	selector := NewSelector(store, nil)

	exclude := map[string]struct{}{
		"key-aaaa-1111": {},
		"key-cccc-3333": {},
	}
	for i := 0; i < 5; i++ {
		key, err := selector.Next(exclude)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if key != "key-bbbb-2222" {
			t.Fatalf("Next() = %s, want the only non-excluded key", MaskKey(key))
		}
	}
}

func TestNextPoolExhausted(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222"}
	store := newTestStore(t, keys, 1, nil)
	selector := NewSelector(store, nil)
	ctx := context.Background()

	store.MarkFailed(ctx, "key-aaaa-1111")
	store.MarkFailed(ctx, "key-bbbb-2222")

	if _, err := selector.Next(nil); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Next() error = %v, want ErrPoolExhausted", err)
	}
}

func TestNextExhaustedByExclusions(t *testing.T) {
	keys := []string{"key-aaaa-1111", "key-bbbb-2222"}
	store := newTestStore(t, keys, 3, nil)
	selector := NewSelector(store, nil)

	exclude := map[string]struct{}{
		"key-aaaa-1111": {},
		"key-bbbb-2222": {},
	}
	if _, err := selector.Next(exclude); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Next() error = %v, want ErrPoolExhausted", err)
	}
}

func TestNextAfterReload(t *testing.T) {
	store := newTestStore(t, []string{"key-aaaa-1111"}, 3, nil)
	selector := NewSelector(store, nil)
	ctx := context.Background()

	if err := store.Reload(ctx, []string{"key-dddd-4444", "key-eeee-5555"}); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		key, err := selector.Next(nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		seen[key] = true
	}
	if !seen["key-dddd-4444"] || !seen["key-eeee-5555"] {
		t.Errorf("rotation after reload saw %v, want both new keys", seen)
	}
	if seen["key-aaaa-1111"] {
		t.Error("removed key still selectable after reload")
	}
}

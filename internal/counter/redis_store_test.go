package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewRedisStore(t *testing.T) {
	store := setupTestRedis(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestIncrementAccumulates(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	v, err := store.IncrementCounter(ctx, "views_total", 1)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected 1, got %d", v)
	}

	v, err = store.IncrementCounter(ctx, "views_total", 3)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if v != 4 {
		t.Errorf("expected 4, got %d", v)
	}
}

func TestGetMissingCounterIsZero(t *testing.T) {
	store := setupTestRedis(t)

	v, err := store.GetCounter(context.Background(), "never_written")
	if err != nil {
		t.Fatalf("GetCounter failed: %v", err)
	}
	if v != 0 {
		t.Errorf("expected 0 for missing counter, got %d", v)
	}
}

func TestResetZeroesOnlyNamedCounters(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	if _, err := store.IncrementCounter(ctx, "views_since_activity", 7); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if _, err := store.IncrementCounter(ctx, "posts_since_activity", 2); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if _, err := store.IncrementCounter(ctx, "views_total", 9); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}

	if err := store.ResetCounters(ctx, "views_since_activity", "posts_since_activity"); err != nil {
		t.Fatalf("ResetCounters failed: %v", err)
	}

	for _, name := range []string{"views_since_activity", "posts_since_activity"} {
		v, err := store.GetCounter(ctx, name)
		if err != nil {
			t.Fatalf("GetCounter %s failed: %v", name, err)
		}
		if v != 0 {
			t.Errorf("%s = %d after reset, want 0", name, v)
		}
	}

	total, err := store.GetCounter(ctx, "views_total")
	if err != nil {
		t.Fatalf("GetCounter views_total failed: %v", err)
	}
	if total != 9 {
		t.Errorf("views_total = %d, want untouched 9", total)
	}
}

func TestIncrementAfterReset(t *testing.T) {
	store := setupTestRedis(t)
	ctx := context.Background()

	if _, err := store.IncrementCounter(ctx, "views_since_activity", 5); err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if err := store.ResetCounters(ctx, "views_since_activity"); err != nil {
		t.Fatalf("ResetCounters failed: %v", err)
	}

	v, err := store.IncrementCounter(ctx, "views_since_activity", 1)
	if err != nil {
		t.Fatalf("IncrementCounter failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected 1 after reset, got %d", v)
	}
}

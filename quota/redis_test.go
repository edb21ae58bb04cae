package quota

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return &RedisStore{client: client, now: time.Now}
}

func TestRedisLedger_AccumulatesSameDay(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	if err := store.Ledger().Commit(ctx, "user-1", 75); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := store.Ledger().Commit(ctx, "user-1", 45); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	used, err := store.Ledger().Used(ctx, "user-1")
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if math.Abs(used-2.0) > 1e-9 {
		t.Errorf("used = %v minutes, want 2.0", used)
	}
}

func TestRedisLedger_UnknownUserReadsZero(t *testing.T) {
	store := setupRedisStore(t)

	used, err := store.Ledger().Used(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if used != 0 {
		t.Errorf("used = %v, want 0", used)
	}
}

func TestRedisLedger_KeysAreDayScopedWithTTL(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return day1 }

	if err := store.Ledger().Commit(ctx, "user-1", 600); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	key := usageKeyPrefix + "2026-03-14:user-1"
	ttl, err := store.client.TTL(ctx, key).Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > usageKeyTTL {
		t.Errorf("ttl = %v, want in (0, %v]", ttl, usageKeyTTL)
	}

	// Next day reads zero and commits under a fresh key.
	store.now = func() time.Time { return day1.Add(24 * time.Hour) }
	used, err := store.Ledger().Used(ctx, "user-1")
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if used != 0 {
		t.Errorf("used after rollover = %v, want 0", used)
	}
	if err := store.Ledger().Commit(ctx, "user-1", 120); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	used, _ = store.Ledger().Used(ctx, "user-1")
	if math.Abs(used-2.0) > 1e-9 {
		t.Errorf("used after new-day commit = %v, want 2.0", used)
	}
}

func TestRedisTracker_BeginEndCount(t *testing.T) {
	store := setupRedisStore(t)
	ctx := context.Background()
	tr := store.Tracker()

	if err := tr.Begin(ctx, "user-1", "req-a"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tr.Begin(ctx, "user-1", "req-b"); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}

	n, err := tr.ActiveCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("active = %d, want 2", n)
	}

	if err := tr.End(ctx, "user-1", "req-a"); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	n, _ = tr.ActiveCount(ctx, "user-1")
	if n != 1 {
		t.Errorf("active after End = %d, want 1", n)
	}

	if err := tr.End(ctx, "user-1", "req-missing"); err != nil {
		t.Errorf("End unknown session: %v", err)
	}
	n, _ = tr.ActiveCount(ctx, "user-unknown")
	if n != 0 {
		t.Errorf("unknown user active = %d, want 0", n)
	}
}

package admission

import (
	"context"
	"fmt"
	"testing"

	"github.com/skillsenselab/voicerelay/quota"
)

func newController(t *testing.T, cfg Config) (*Controller, quota.Store) {
	t.Helper()
	store := quota.NewMemoryStore()
	return NewController(cfg, store.Ledger(), store.Tracker()), store
}

func TestAdmit_AcceptRegistersSession(t *testing.T) {
	ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 2})
	ctx := context.Background()

	d, err := ctrl.Admit(ctx, "user-1", "req-1", false)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Verdict != Accept {
		t.Fatalf("verdict = %v, want accept", d.Verdict)
	}

	n, _ := store.Tracker().ActiveCount(ctx, "user-1")
	if n != 1 {
		t.Errorf("active = %d, want 1 (registration must precede I/O)", n)
	}
}

func TestAdmit_QuotaExhaustedRejectsAnyChunk(t *testing.T) {
	ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 2})
	ctx := context.Background()

	// Exactly at the limit counts as exhausted.
	if err := store.Ledger().Commit(ctx, "user-1", 600); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	for _, isFinal := range []bool{false, true} {
		d, err := ctrl.Admit(ctx, "user-1", "req-1", isFinal)
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
		if d.Verdict != RejectQuota {
			t.Errorf("isFinal=%v: verdict = %v, want reject_quota", isFinal, d.Verdict)
		}
		if d.UsedMinutes < 10 || d.LimitMinutes != 10 || d.RemainingMinutes != 0 {
			t.Errorf("isFinal=%v: accounting = used %v limit %v remaining %v",
				isFinal, d.UsedMinutes, d.LimitMinutes, d.RemainingMinutes)
		}
	}

	// Nothing was registered.
	n, _ := store.Tracker().ActiveCount(ctx, "user-1")
	if n != 0 {
		t.Errorf("active = %d, want 0", n)
	}
}

func TestAdmit_QuotaCheckedBeforeBackpressure(t *testing.T) {
	ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 1})
	ctx := context.Background()

	_ = store.Ledger().Commit(ctx, "user-1", 600)
	_ = store.Tracker().Begin(ctx, "user-1", "req-0")

	// Both limits are hit; quota wins so the client sees a stable error.
	d, err := ctrl.Admit(ctx, "user-1", "req-1", false)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Verdict != RejectQuota {
		t.Errorf("verdict = %v, want reject_quota", d.Verdict)
	}
}

func TestAdmit_BackpressureDropsNonFinalOnly(t *testing.T) {
	ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 2})
	ctx := context.Background()

	_ = store.Tracker().Begin(ctx, "user-1", "req-a")
	_ = store.Tracker().Begin(ctx, "user-1", "req-b")

	d, err := ctrl.Admit(ctx, "user-1", "req-c", false)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Verdict != DropBackpressure {
		t.Errorf("non-final verdict = %v, want drop_backpressure", d.Verdict)
	}

	// Identical conditions, final chunk: accepted.
	d, err = ctrl.Admit(ctx, "user-1", "req-d", true)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Verdict != Accept {
		t.Errorf("final verdict = %v, want accept", d.Verdict)
	}
}

func TestAdmit_FinalNeverDroppedForAnyActiveCount(t *testing.T) {
	ctx := context.Background()
	for _, active := range []int{0, 1, 2, 5, 50} {
		ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 2})
		for i := 0; i < active; i++ {
			_ = store.Tracker().Begin(ctx, "user-1", fmt.Sprintf("req-%d", i))
		}

		d, err := ctrl.Admit(ctx, "user-1", "req-final", true)
		if err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
		if d.Verdict == DropBackpressure {
			t.Errorf("active=%d: final chunk dropped for backpressure", active)
		}
	}
}

func TestAdmit_OtherUsersUnaffected(t *testing.T) {
	ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 1})
	ctx := context.Background()

	_ = store.Tracker().Begin(ctx, "user-1", "req-a")

	d, err := ctrl.Admit(ctx, "user-2", "req-b", false)
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if d.Verdict != Accept {
		t.Errorf("verdict for other user = %v, want accept", d.Verdict)
	}
}

func TestRelease_RemovesRegistration(t *testing.T) {
	ctrl, store := newController(t, Config{DailyLimitMinutes: 10, MaxConcurrentPerUser: 2})
	ctx := context.Background()

	if _, err := ctrl.Admit(ctx, "user-1", "req-1", false); err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if err := ctrl.Release(ctx, "user-1", "req-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	n, _ := store.Tracker().ActiveCount(ctx, "user-1")
	if n != 0 {
		t.Errorf("active after release = %d, want 0", n)
	}
}

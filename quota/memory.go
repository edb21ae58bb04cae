package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps usage and session state in process memory. Quotas reset
// on restart; acceptable for a single relay instance.
type MemoryStore struct {
	ledger  *memoryLedger
	tracker *memoryTracker
}

// NewMemoryStore creates an in-memory quota store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates an in-memory quota store with an injected
// clock, used by tests to exercise day rollover.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		ledger:  &memoryLedger{users: make(map[string]*usageEntry), now: now},
		tracker: &memoryTracker{users: make(map[string]*sessionEntry)},
	}
}

// Ledger returns the usage ledger.
func (s *MemoryStore) Ledger() Ledger { return s.ledger }

// Tracker returns the active-session tracker.
func (s *MemoryStore) Tracker() Tracker { return s.tracker }

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// usageEntry is one user's daily accumulator. Each entry carries its own
// mutex so concurrent commits only contend within a single user.
type usageEntry struct {
	mu      sync.Mutex
	day     string
	minutes float64
}

type memoryLedger struct {
	mu    sync.RWMutex
	users map[string]*usageEntry
	now   func() time.Time
}

func (l *memoryLedger) entry(userID string) *usageEntry {
	l.mu.RLock()
	e, ok := l.users[userID]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.users[userID]; ok {
		return e
	}
	e = &usageEntry{}
	l.users[userID] = e
	return e
}

func (l *memoryLedger) Used(_ context.Context, userID string) (float64, error) {
	l.mu.RLock()
	e, ok := l.users[userID]
	l.mu.RUnlock()
	if !ok {
		return 0, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.day != dayKey(l.now()) {
		// Stale record from a previous day reads as zero.
		return 0, nil
	}
	return e.minutes, nil
}

func (l *memoryLedger) Commit(_ context.Context, userID string, durationSeconds float64) error {
	e := l.entry(userID)

	e.mu.Lock()
	defer e.mu.Unlock()
	today := dayKey(l.now())
	if e.day != today {
		e.day = today
		e.minutes = 0
	}
	e.minutes += durationSeconds / 60
	return nil
}

// sessionEntry is one user's set of in-flight chunk request IDs.
type sessionEntry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

type memoryTracker struct {
	mu    sync.RWMutex
	users map[string]*sessionEntry
}

func (t *memoryTracker) entry(userID string) *sessionEntry {
	t.mu.RLock()
	e, ok := t.users[userID]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.users[userID]; ok {
		return e
	}
	e = &sessionEntry{ids: make(map[string]struct{})}
	t.users[userID] = e
	return e
}

func (t *memoryTracker) Begin(_ context.Context, userID, requestID string) error {
	e := t.entry(userID)
	e.mu.Lock()
	e.ids[requestID] = struct{}{}
	e.mu.Unlock()
	return nil
}

func (t *memoryTracker) End(_ context.Context, userID, requestID string) error {
	t.mu.RLock()
	e, ok := t.users[userID]
	t.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.Lock()
	delete(e.ids, requestID)
	e.mu.Unlock()
	return nil
}

func (t *memoryTracker) ActiveCount(_ context.Context, userID string) (int, error) {
	t.mu.RLock()
	e, ok := t.users[userID]
	t.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ids), nil
}

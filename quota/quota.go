// Package quota tracks per-user daily transcription usage and in-flight
// session counts. Both concerns sit behind small interfaces so the in-memory
// single-process implementation can be swapped for the Redis-backed one when
// multiple relay instances share state.
package quota

import (
	"context"
	"fmt"
	"time"
)

// Ledger accumulates per-user daily usage in minutes.
type Ledger interface {
	// Used returns the minutes consumed today by the user. A user with no
	// record for today reports zero.
	Used(ctx context.Context, userID string) (float64, error)
	// Commit adds durationSeconds of consumed audio to today's record. A
	// stale record from a previous day is discarded, not accumulated.
	Commit(ctx context.Context, userID string, durationSeconds float64) error
}

// Tracker maintains the set of in-flight chunk sessions per user.
type Tracker interface {
	// Begin registers a session. Must be called before any upstream I/O so
	// the concurrency ceiling holds against concurrent bursts.
	Begin(ctx context.Context, userID, requestID string) error
	// End unregisters a session. Called on every exit path.
	End(ctx context.Context, userID, requestID string) error
	// ActiveCount returns the number of in-flight sessions for the user.
	ActiveCount(ctx context.Context, userID string) (int, error)
}

// Store bundles a Ledger and a Tracker built from the same backend.
type Store interface {
	Ledger() Ledger
	Tracker() Tracker
	Close() error
}

// Config selects and configures the quota backend.
type Config struct {
	// Store is the backend: "memory" (single process) or "redis".
	Store string      `yaml:"store" mapstructure:"store"`
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Store == "" {
		c.Store = "memory"
	}
	c.Redis.ApplyDefaults()
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Store != "memory" && c.Store != "redis" {
		return fmt.Errorf("quota.store must be \"memory\" or \"redis\" (got: %s)", c.Store)
	}
	return nil
}

// Open builds a Store from config.
func Open(cfg Config) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store == "redis" {
		return OpenRedis(cfg.Redis)
	}
	return NewMemoryStore(), nil
}

// dayKey returns the calendar date key used to scope usage records.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

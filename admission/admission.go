// Package admission decides, per incoming audio chunk, whether the relay
// accepts it, rejects it for exhausted daily quota, or drops it for
// backpressure. The decision runs before any upstream I/O.
package admission

import (
	"context"
	"fmt"

	"github.com/skillsenselab/voicerelay/quota"
)

// Verdict is the admission outcome for one chunk.
type Verdict int

const (
	// Accept admits the chunk; its session has been registered.
	Accept Verdict = iota
	// RejectQuota is terminal: the user's daily quota is exhausted.
	RejectQuota
	// DropBackpressure is transient: the user's concurrency ceiling is
	// reached. Never returned for final chunks.
	DropBackpressure
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case RejectQuota:
		return "reject_quota"
	case DropBackpressure:
		return "drop_backpressure"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Decision carries the verdict plus the quota accounting surfaced to clients
// on rejection.
type Decision struct {
	Verdict          Verdict
	LimitMinutes     float64
	UsedMinutes      float64
	RemainingMinutes float64
}

// Config holds admission policy limits.
type Config struct {
	// DailyLimitMinutes is the per-user daily transcription quota.
	DailyLimitMinutes float64 `yaml:"daily_limit_minutes" mapstructure:"daily_limit_minutes"`
	// MaxConcurrentPerUser caps in-flight non-final chunks per user.
	MaxConcurrentPerUser int `yaml:"max_concurrent_per_user" mapstructure:"max_concurrent_per_user"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.DailyLimitMinutes == 0 {
		c.DailyLimitMinutes = 10
	}
	if c.MaxConcurrentPerUser == 0 {
		c.MaxConcurrentPerUser = 2
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.DailyLimitMinutes < 0 {
		return fmt.Errorf("admission.daily_limit_minutes must be non-negative (got: %v)", c.DailyLimitMinutes)
	}
	if c.MaxConcurrentPerUser < 0 {
		return fmt.Errorf("admission.max_concurrent_per_user must be non-negative (got: %d)", c.MaxConcurrentPerUser)
	}
	return nil
}

// Controller applies the admission policy over the quota ledger and the
// active-session tracker.
type Controller struct {
	cfg     Config
	ledger  quota.Ledger
	tracker quota.Tracker
}

// NewController creates an admission controller.
func NewController(cfg Config, ledger quota.Ledger, tracker quota.Tracker) *Controller {
	cfg.ApplyDefaults()
	return &Controller{cfg: cfg, ledger: ledger, tracker: tracker}
}

// Admit evaluates one chunk. The checks run in a fixed order: quota first so
// an exhausted user sees a stable terminal error instead of an intermittent
// backpressure signal, then the concurrency ceiling. Final chunks are exempt
// from the ceiling: they carry the canonical transcript and are never
// dropped. On Accept the session is registered before any upstream I/O so a
// burst of concurrent chunks cannot slip past the ceiling.
func (c *Controller) Admit(ctx context.Context, userID, requestID string, isFinal bool) (Decision, error) {
	used, err := c.ledger.Used(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("read usage: %w", err)
	}

	d := Decision{
		LimitMinutes:     c.cfg.DailyLimitMinutes,
		UsedMinutes:      used,
		RemainingMinutes: c.cfg.DailyLimitMinutes - used,
	}
	if d.RemainingMinutes < 0 {
		d.RemainingMinutes = 0
	}

	if used >= c.cfg.DailyLimitMinutes {
		d.Verdict = RejectQuota
		return d, nil
	}

	if !isFinal {
		active, err := c.tracker.ActiveCount(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("count active sessions: %w", err)
		}
		if active >= c.cfg.MaxConcurrentPerUser {
			d.Verdict = DropBackpressure
			return d, nil
		}
	}

	if err := c.tracker.Begin(ctx, userID, requestID); err != nil {
		return Decision{}, fmt.Errorf("register session: %w", err)
	}
	d.Verdict = Accept
	return d, nil
}

// Release removes the chunk's session registration. Callers run this on
// every exit path of an accepted session.
func (c *Controller) Release(ctx context.Context, userID, requestID string) error {
	return c.tracker.End(ctx, userID, requestID)
}

package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	usageKeyPrefix  = "voicerelay:usage:"
	activeKeyPrefix = "voicerelay:active:"

	// Usage keys are scoped to a calendar day; one-day expiry keeps the
	// keyspace from accumulating dead records.
	usageKeyTTL = 24 * time.Hour
	// Active-set keys are decremented explicitly; the TTL is only a safety
	// net against entries orphaned by a crashed instance.
	activeKeyTTL = time.Hour
)

// RedisConfig holds connection settings for the Redis quota backend.
type RedisConfig struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	Password     string `yaml:"password" mapstructure:"password"`
	DB           int    `yaml:"db" mapstructure:"db"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	DialTimeout  string `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  string `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *RedisConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6379
	}
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
}

// RedisStore implements Store on Redis so multiple relay instances share
// quota and concurrency state.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(cfg RedisConfig) (*RedisStore, error) {
	cfg.ApplyDefaults()

	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}
	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}
	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, now: time.Now}, nil
}

// Ledger returns the usage ledger.
func (s *RedisStore) Ledger() Ledger { return &redisLedger{client: s.client, now: s.now} }

// Tracker returns the active-session tracker.
func (s *RedisStore) Tracker() Tracker { return &redisTracker{client: s.client} }

// Close closes the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }

type redisLedger struct {
	client *redis.Client
	now    func() time.Time
}

func (l *redisLedger) usageKey(userID string) string {
	return usageKeyPrefix + dayKey(l.now()) + ":" + userID
}

func (l *redisLedger) Used(ctx context.Context, userID string) (float64, error) {
	minutes, err := l.client.Get(ctx, l.usageKey(userID)).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage: %w", err)
	}
	return minutes, nil
}

func (l *redisLedger) Commit(ctx context.Context, userID string, durationSeconds float64) error {
	key := l.usageKey(userID)
	if err := l.client.IncrByFloat(ctx, key, durationSeconds/60).Err(); err != nil {
		return fmt.Errorf("commit usage: %w", err)
	}
	// Day rollover happens by key construction; the TTL only cleans up.
	if err := l.client.ExpireNX(ctx, key, usageKeyTTL).Err(); err != nil {
		return fmt.Errorf("set usage expiry: %w", err)
	}
	return nil
}

type redisTracker struct {
	client *redis.Client
}

func (t *redisTracker) Begin(ctx context.Context, userID, requestID string) error {
	key := activeKeyPrefix + userID
	if err := t.client.SAdd(ctx, key, requestID).Err(); err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	if err := t.client.Expire(ctx, key, activeKeyTTL).Err(); err != nil {
		return fmt.Errorf("set session expiry: %w", err)
	}
	return nil
}

func (t *redisTracker) End(ctx context.Context, userID, requestID string) error {
	if err := t.client.SRem(ctx, activeKeyPrefix+userID, requestID).Err(); err != nil {
		return fmt.Errorf("unregister session: %w", err)
	}
	return nil
}

func (t *redisTracker) ActiveCount(ctx context.Context, userID string) (int, error) {
	n, err := t.client.SCard(ctx, activeKeyPrefix+userID).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

package relay

import (
	"fmt"
	"time"
)

// Config holds relay session settings.
type Config struct {
	// DefaultLanguage is used when a chunk does not declare one.
	DefaultLanguage string `yaml:"default_language" mapstructure:"default_language"`
	// MaxAudioBytes caps the size of one uploaded chunk.
	MaxAudioBytes int64 `yaml:"max_audio_bytes" mapstructure:"max_audio_bytes"`
	// SessionTimeout is the defensive per-session ceiling. An upstream that
	// never completes and never disconnects would otherwise hold a
	// concurrency slot indefinitely.
	SessionTimeout string `yaml:"session_timeout" mapstructure:"session_timeout"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = "en"
	}
	if c.MaxAudioBytes == 0 {
		c.MaxAudioBytes = 2 << 20
	}
	if c.SessionTimeout == "" {
		c.SessionTimeout = "30s"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.MaxAudioBytes < 0 {
		return fmt.Errorf("relay.max_audio_bytes must be non-negative (got: %d)", c.MaxAudioBytes)
	}
	if _, err := time.ParseDuration(c.SessionTimeout); err != nil {
		return fmt.Errorf("invalid relay.session_timeout: %w", err)
	}
	return nil
}

// sessionTimeout returns the parsed timeout. Config validation guarantees
// the value parses.
func (c *Config) sessionTimeout() time.Duration {
	d, err := time.ParseDuration(c.SessionTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

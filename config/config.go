// Package config loads the relay's configuration from a YAML file,
// a .env file, and process environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"

	"github.com/skillsenselab/voicerelay/admission"
	"github.com/skillsenselab/voicerelay/logger"
	"github.com/skillsenselab/voicerelay/quota"
	"github.com/skillsenselab/voicerelay/relay"
	"github.com/skillsenselab/voicerelay/server"
	"github.com/skillsenselab/voicerelay/upstream"
)

// Config is the full configuration for the relay service.
type Config struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
	Debug       bool   `yaml:"debug" mapstructure:"debug"`

	Logging   logger.Config    `yaml:"logging" mapstructure:"logging"`
	Server    server.Config    `yaml:"server" mapstructure:"server"`
	Upstream  upstream.Config  `yaml:"upstream" mapstructure:"upstream"`
	Quota     quota.Config     `yaml:"quota" mapstructure:"quota"`
	Admission admission.Config `yaml:"admission" mapstructure:"admission"`
	Relay     relay.Config     `yaml:"relay" mapstructure:"relay"`
}

// ApplyDefaults fills in defaults for every section.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "voicerelay"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Upstream.ApplyDefaults()
	c.Quota.ApplyDefaults()
	c.Admission.ApplyDefaults()
	c.Relay.ApplyDefaults()
}

// Validate checks every section and returns the first problem found.
func (c *Config) Validate() error {
	validEnvs := []string{"development", "staging", "production"}
	found := false
	for _, v := range validEnvs {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("environment must be one of [development, staging, production] (got: %s)", c.Environment)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Upstream.Validate(); err != nil {
		return fmt.Errorf("upstream: %w", err)
	}
	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	if err := c.Admission.Validate(); err != nil {
		return fmt.Errorf("admission: %w", err)
	}
	if err := c.Relay.Validate(); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}

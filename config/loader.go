package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoaderOption customizes Load.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path instead of searching.
func WithConfigFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path instead of searching.
func WithEnvFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.envFile = path }
}

// Load reads configuration from a config.yml, a .env file, and the process
// environment, applies defaults, and validates the result.
func Load(opts ...LoaderOption) (*Config, error) {
	var lo loaderOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if lo.configFile == "" {
		lo.configFile = findFirst(
			"./config.yml",
			"./config/config.yml",
			"./cmd/relay/config.yml",
		)
	}
	if lo.envFile == "" {
		lo.envFile = findFirst(".env", "./config/.env")
	}

	v := viper.New()

	// YAML file first: it is the base everything else overrides.
	if lo.configFile != "" {
		v.SetConfigFile(lo.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", lo.configFile, err)
		}
	}

	// .env entries become process env vars, then all env vars are bound.
	if lo.envFile != "" {
		if err := godotenv.Load(lo.envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", lo.envFile, err)
		}
	}
	v.AutomaticEnv()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func findFirst(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// bindEnvVars maps UPPER_SNAKE environment variables onto viper's nested
// keys so UPSTREAM_API_KEY reaches upstream.api_key without explicit
// BindEnv calls per field.
func bindEnvVars(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 || pair[1] == "" {
			continue
		}
		for _, key := range envKeyVariants(pair[0]) {
			v.Set(key, pair[1])
		}
	}
}

// envKeyVariants expands an env var name into the nested key spellings a
// section field might use: UPSTREAM_API_KEY -> upstream_api_key,
// upstream.api.key, upstream.api_key.
func envKeyVariants(envKey string) []string {
	lower := strings.ToLower(envKey)
	parts := strings.Split(lower, "_")
	if len(parts) <= 1 {
		return []string{lower}
	}

	variants := []string{lower, strings.ReplaceAll(lower, "_", ".")}
	for i := 1; i < len(parts); i++ {
		variants = append(variants, strings.Join(parts[:i], ".")+"."+strings.Join(parts[i:], "_"))
	}

	seen := make(map[string]bool, len(variants))
	out := variants[:0]
	for _, k := range variants {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

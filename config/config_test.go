package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_YAMLAndDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", `
name: voicerelay
environment: production
server:
  port: 9090
upstream:
  api_key: test-key
admission:
  daily_limit_minutes: 15
`)

	cfg, err := Load(WithConfigFile(cfgFile), WithEnvFile(filepath.Join(dir, "nonexistent-skipped")))
	if err == nil {
		t.Fatalf("expected error for missing env file")
	}

	cfg, err = Load(WithConfigFile(cfgFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Admission.DailyLimitMinutes != 15 {
		t.Errorf("daily_limit_minutes = %v, want 15", cfg.Admission.DailyLimitMinutes)
	}
	// Unset sections get their defaults.
	if cfg.Admission.MaxConcurrentPerUser != 2 {
		t.Errorf("max_concurrent_per_user = %d, want default 2", cfg.Admission.MaxConcurrentPerUser)
	}
	if cfg.Upstream.Model != "gpt-4o-mini-transcribe" {
		t.Errorf("upstream.model = %q, want default", cfg.Upstream.Model)
	}
	if cfg.Quota.Store != "memory" {
		t.Errorf("quota.store = %q, want default memory", cfg.Quota.Store)
	}
	if cfg.Debug {
		t.Error("debug should stay off in production")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", `
name: voicerelay
upstream:
  api_key: from-yaml
`)
	t.Setenv("UPSTREAM_API_KEY", "from-env")

	cfg, err := Load(WithConfigFile(cfgFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Upstream.APIKey != "from-env" {
		t.Errorf("upstream.api_key = %q, want from-env", cfg.Upstream.APIKey)
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", "name: voicerelay\n")
	envFile := writeFile(t, dir, ".env", "UPSTREAM_API_KEY=from-dotenv\n")
	// godotenv.Load inside Load sets this in the process environment;
	// unset it afterward so later tests start from a clean environment.
	t.Cleanup(func() { os.Unsetenv("UPSTREAM_API_KEY") })

	cfg, err := Load(WithConfigFile(cfgFile), WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Upstream.APIKey != "from-dotenv" {
		t.Errorf("upstream.api_key = %q, want from-dotenv", cfg.Upstream.APIKey)
	}
}

func TestLoad_InvalidEnvironmentRejected(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", `
name: voicerelay
environment: prod
upstream:
  api_key: k
`)
	if _, err := Load(WithConfigFile(cfgFile)); err == nil {
		t.Fatal("expected validation error for environment=prod")
	}
}

func TestLoad_MissingAPIKeyRejected(t *testing.T) {
	dir := t.TempDir()
	cfgFile := writeFile(t, dir, "config.yml", "name: voicerelay\n")

	if _, err := Load(WithConfigFile(cfgFile)); err == nil {
		t.Fatal("expected validation error for missing upstream.api_key")
	}
}

func TestEnvKeyVariants(t *testing.T) {
	got := envKeyVariants("UPSTREAM_API_KEY")
	want := map[string]bool{
		"upstream_api_key": true,
		"upstream.api.key": true,
		"upstream.api_key": true,
	}
	for _, k := range got {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Errorf("missing variants %v in %v", want, got)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Storage.Backend != "fs" {
		t.Errorf("expected backend fs, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.DataDir != ".warden/state" {
		t.Errorf("expected data dir .warden/state, got %s", cfg.Storage.DataDir)
	}
	if cfg.Registry.AgentsDir != ".warden/agents" {
		t.Errorf("expected agents dir .warden/agents, got %s", cfg.Registry.AgentsDir)
	}
	if cfg.Breaker.Cooldown != 30*time.Second {
		t.Errorf("expected breaker cooldown 30s, got %v", cfg.Breaker.Cooldown)
	}
	if cfg.Orchestrator.StopPrecedence != "step-first" {
		t.Errorf("expected step-first precedence, got %s", cfg.Orchestrator.StopPrecedence)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
storage:
  backend: "postgres"
  postgres:
    dsn: "postgres://warden@localhost:5432/warden"
    max_conns: 20
logging:
  level: "debug"
orchestrator:
  max_parallel: 8
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Storage.Backend != "postgres" {
		t.Errorf("expected backend postgres, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Storage.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Orchestrator.MaxParallel != 8 {
		t.Errorf("expected max_parallel 8, got %d", cfg.Orchestrator.MaxParallel)
	}
	// Unchanged fields keep defaults
	if cfg.Gateway.URL != "http://localhost:4000" {
		t.Errorf("expected default gateway URL, got %s", cfg.Gateway.URL)
	}
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Storage.Backend != "fs" {
		t.Errorf("defaults should survive, got backend %s", cfg.Storage.Backend)
	}
}

func TestLoadYAMLMalformed(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("storage: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REPOWARDEN_LOG_LEVEL", "warn")
	t.Setenv("REPOWARDEN_DATA_DIR", "/var/lib/warden")
	t.Setenv("REPOWARDEN_BREAKER_MAX_FAILURES", "9")
	t.Setenv("REPOWARDEN_BREAKER_COOLDOWN", "1m")
	t.Setenv("REPOWARDEN_LOG_ASYNC", "true")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Storage.DataDir != "/var/lib/warden" {
		t.Errorf("expected /var/lib/warden, got %s", cfg.Storage.DataDir)
	}
	if cfg.Breaker.MaxFailures != 9 {
		t.Errorf("expected max_failures 9, got %d", cfg.Breaker.MaxFailures)
	}
	if cfg.Breaker.Cooldown != time.Minute {
		t.Errorf("expected cooldown 1m, got %v", cfg.Breaker.Cooldown)
	}
	if !cfg.Logging.Async {
		t.Error("expected async logging enabled")
	}
}

func TestLoadEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("REPOWARDEN_BREAKER_MAX_FAILURES", "not-a-number")
	t.Setenv("REPOWARDEN_BREAKER_COOLDOWN", "eternity")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Breaker.MaxFailures != 5 {
		t.Errorf("invalid int should keep default, got %d", cfg.Breaker.MaxFailures)
	}
	if cfg.Breaker.Cooldown != 30*time.Second {
		t.Errorf("invalid duration should keep default, got %v", cfg.Breaker.Cooldown)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "redis" }, true},
		{"fs without data dir", func(c *Config) { c.Storage.DataDir = "" }, true},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Storage.Backend = "postgres"
			c.Storage.Postgres.DSN = "postgres://warden@localhost/warden"
		}, false},
		{"empty agents dir", func(c *Config) { c.Registry.AgentsDir = "" }, true},
		{"zero breaker failures", func(c *Config) { c.Breaker.MaxFailures = 0 }, true},
		{"zero max parallel", func(c *Config) { c.Orchestrator.MaxParallel = 0 }, true},
		{"bad precedence", func(c *Config) { c.Orchestrator.StopPrecedence = "both" }, true},
		{"chain-first precedence", func(c *Config) { c.Orchestrator.StopPrecedence = "chain-first" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := validate(&cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

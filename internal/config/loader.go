package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "repowarden.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Logging.Level, "REPOWARDEN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "REPOWARDEN_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "REPOWARDEN_LOG_ASYNC")
	setString(&cfg.Storage.Backend, "REPOWARDEN_STORAGE_BACKEND")
	setString(&cfg.Storage.DataDir, "REPOWARDEN_DATA_DIR")
	setString(&cfg.Storage.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Storage.Postgres.MaxConns, "REPOWARDEN_PG_MAX_CONNS")
	setInt32(&cfg.Storage.Postgres.MinConns, "REPOWARDEN_PG_MIN_CONNS")
	setDuration(&cfg.Storage.Postgres.MaxConnLifetime, "REPOWARDEN_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Storage.Postgres.MaxConnIdleTime, "REPOWARDEN_PG_MAX_CONN_IDLE_TIME")
	setString(&cfg.Registry.AgentsDir, "REPOWARDEN_AGENTS_DIR")
	setString(&cfg.Gateway.URL, "REPOWARDEN_GATEWAY_URL")
	setString(&cfg.Gateway.APIKey, "REPOWARDEN_GATEWAY_KEY")
	setString(&cfg.Gateway.Model, "REPOWARDEN_GATEWAY_MODEL")
	setDuration(&cfg.Gateway.Timeout, "REPOWARDEN_GATEWAY_TIMEOUT")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt(&cfg.Breaker.MaxFailures, "REPOWARDEN_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Cooldown, "REPOWARDEN_BREAKER_COOLDOWN")
	setInt(&cfg.Orchestrator.MaxParallel, "REPOWARDEN_ORCH_MAX_PARALLEL")
	setString(&cfg.Orchestrator.StopPrecedence, "REPOWARDEN_ORCH_STOP_PRECEDENCE")
	setString(&cfg.Orchestrator.ChainsDir, "REPOWARDEN_CHAINS_DIR")
	setString(&cfg.Audit.Path, "REPOWARDEN_AUDIT_PATH")
}

// validate checks that required fields are set and enums are known.
func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case BackendFS:
		if cfg.Storage.DataDir == "" {
			return errors.New("storage.data_dir is required")
		}
	case BackendPostgres:
		if cfg.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
		if cfg.Storage.Postgres.MaxConns < 1 {
			return errors.New("storage.postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("storage.backend must be \"fs\" or \"postgres\", got %q", cfg.Storage.Backend)
	}
	if cfg.Registry.AgentsDir == "" {
		return errors.New("registry.agents_dir is required")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Orchestrator.MaxParallel < 1 {
		return errors.New("orchestrator.max_parallel must be >= 1")
	}
	switch cfg.Orchestrator.StopPrecedence {
	case "step-first", "chain-first":
	default:
		return fmt.Errorf("orchestrator.stop_precedence must be \"step-first\" or \"chain-first\", got %q", cfg.Orchestrator.StopPrecedence)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

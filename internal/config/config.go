// Package config provides hierarchical configuration loading for RepoWarden.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the RepoWarden core.
type Config struct {
	Logging      Logging      `yaml:"logging"`
	Storage      Storage      `yaml:"storage"`
	Registry     Registry     `yaml:"registry"`
	Gateway      Gateway      `yaml:"gateway"`
	NATS         NATS         `yaml:"nats"`
	Breaker      Breaker      `yaml:"breaker"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Audit        Audit        `yaml:"audit"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Known storage backends.
const (
	BackendFS       = "fs"
	BackendPostgres = "postgres"
)

// Storage selects and configures the state backend.
type Storage struct {
	Backend  string   `yaml:"backend"` // "fs" | "postgres"
	DataDir  string   `yaml:"data_dir"`
	Postgres Postgres `yaml:"postgres"`
}

// Postgres holds PostgreSQL connection configuration.
type Postgres struct {
	DSN             string        `yaml:"dsn"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// Registry holds agent-definition registry configuration.
type Registry struct {
	AgentsDir string `yaml:"agents_dir"`
}

// Gateway holds the LLM gateway (OpenAI-compatible proxy) configuration.
type Gateway struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// NATS holds NATS JetStream notifier configuration. An empty URL
// disables event publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// Breaker holds circuit breaker configuration for the gateway client.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Orchestrator holds chain execution configuration.
type Orchestrator struct {
	MaxParallel    int    `yaml:"max_parallel"`    // Max chains in flight across the pool
	StopPrecedence string `yaml:"stop_precedence"` // "step-first" | "chain-first"; chains may override
	ChainsDir      string `yaml:"chains_dir"`
}

// Audit holds the append-only audit log configuration.
type Audit struct {
	Path string `yaml:"path"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	return Config{
		Logging: Logging{
			Level:   "info",
			Service: "repowarden",
		},
		Storage: Storage{
			Backend: BackendFS,
			DataDir: ".warden/state",
			Postgres: Postgres{
				MaxConns:        10,
				MinConns:        2,
				MaxConnLifetime: time.Hour,
				MaxConnIdleTime: 10 * time.Minute,
			},
		},
		Registry: Registry{
			AgentsDir: ".warden/agents",
		},
		Gateway: Gateway{
			URL:     "http://localhost:4000",
			Model:   "openai/gpt-4o-mini",
			Timeout: 120 * time.Second,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
		Orchestrator: Orchestrator{
			MaxParallel:    4,
			StopPrecedence: "step-first",
			ChainsDir:      ".warden/chains",
		},
		Audit: Audit{
			Path: ".warden/ledger/audit.jsonl",
		},
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/RepoWarden/internal/adapter/fsstore"
	"github.com/Strob0t/RepoWarden/internal/adapter/llmgateway"
	"github.com/Strob0t/RepoWarden/internal/adapter/natspub"
	"github.com/Strob0t/RepoWarden/internal/adapter/postgres"
	"github.com/Strob0t/RepoWarden/internal/audit"
	"github.com/Strob0t/RepoWarden/internal/config"
	"github.com/Strob0t/RepoWarden/internal/domain/chain"
	"github.com/Strob0t/RepoWarden/internal/logger"
	"github.com/Strob0t/RepoWarden/internal/port/notifier"
	"github.com/Strob0t/RepoWarden/internal/port/store"
	"github.com/Strob0t/RepoWarden/internal/registry"
	"github.com/Strob0t/RepoWarden/internal/resilience"
	"github.com/Strob0t/RepoWarden/internal/service"
)

// deps bundles everything a command needs. Commands that only read the
// registry still build the full set; construction is cheap and keeps
// the wiring in one place.
type deps struct {
	cfg          *config.Config
	log          *slog.Logger
	store        store.Store
	registry     *registry.Registry
	harness      *service.HarnessService
	chains       *service.ChainService
	orchestrator *service.OrchestratorService
}

// loadDeps constructs the dependency graph from configuration. The
// returned cleanup closes every owned resource in reverse order.
func loadDeps(ctx context.Context) (*deps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
		logCloser.Close()
	}
	fail := func(err error) (*deps, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var st store.Store
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.Postgres)
		if err != nil {
			return fail(fmt.Errorf("postgres: %w", err))
		}
		closers = append(closers, pool.Close)
		st = postgres.NewStore(pool)
	default:
		fs, err := fsstore.Open(cfg.Storage.DataDir)
		if err != nil {
			return fail(fmt.Errorf("open state dir: %w", err))
		}
		closers = append(closers, func() { _ = fs.Close() })
		st = fs
	}

	reg, err := registry.LoadOnce(cfg.Registry.AgentsDir)
	if err != nil {
		return fail(fmt.Errorf("load agents: %w", err))
	}
	for _, w := range reg.Skipped() {
		log.Warn("agent definition skipped", "path", w.Path, "reason", w.Reason)
	}

	auditLog, err := audit.Open(cfg.Audit.Path)
	if err != nil {
		return fail(fmt.Errorf("open audit log: %w", err))
	}
	closers = append(closers, func() { _ = auditLog.Close() })

	var notify notifier.Notifier = notifier.Nop{}
	if cfg.NATS.URL != "" {
		pub, err := natspub.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fail(fmt.Errorf("nats: %w", err))
		}
		closers = append(closers, func() { _ = pub.Close() })
		notify = pub
	}

	collab := llmgateway.NewClient(cfg.Gateway.URL, cfg.Gateway.APIKey, cfg.Gateway.Model)
	collab.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Cooldown))

	harness := service.NewHarnessService(reg, st, collab, auditLog, notify, log)

	chains := service.NewChainService()
	if err := chains.LoadDirectory(cfg.Orchestrator.ChainsDir); err != nil {
		return fail(err)
	}

	orch := service.NewOrchestratorService(chains, harness, st, notify, log, cfg.Orchestrator.MaxParallel)
	orch.SetDefaultPrecedence(chain.StopPrecedence(cfg.Orchestrator.StopPrecedence))

	return &deps{
		cfg:          cfg,
		log:          log,
		store:        st,
		registry:     reg,
		harness:      harness,
		chains:       chains,
		orchestrator: orch,
	}, cleanup, nil
}

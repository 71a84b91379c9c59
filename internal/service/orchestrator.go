package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Strob0t/RepoWarden/internal/domain/chain"
	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
	"github.com/Strob0t/RepoWarden/internal/port/notifier"
	"github.com/Strob0t/RepoWarden/internal/port/store"
)

// OrchestratorService executes chains: ordered agent steps run as one
// logical, persisted unit. Independent runs proceed concurrently up to
// a bounded pool size; steps within a run are strictly sequential.
type OrchestratorService struct {
	chains  *ChainService
	harness *HarnessService
	store   store.Store
	notify  notifier.Notifier
	log     *slog.Logger
	pool    *semaphore.Weighted

	// precedence applies to chains that do not declare their own.
	precedence chain.StopPrecedence
}

// NewOrchestratorService wires an orchestrator with a run pool of the
// given size.
func NewOrchestratorService(chains *ChainService, harness *HarnessService, st store.Store, notify notifier.Notifier, log *slog.Logger, maxParallel int) *OrchestratorService {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &OrchestratorService{
		chains:     chains,
		harness:    harness,
		store:      st,
		notify:     notify,
		log:        log,
		pool:       semaphore.NewWeighted(int64(maxParallel)),
		precedence: chain.PrecedenceStepFirst,
	}
}

// SetDefaultPrecedence overrides the stop precedence applied to chains
// that do not declare one.
func (s *OrchestratorService) SetDefaultPrecedence(p chain.StopPrecedence) {
	if p != "" {
		s.precedence = p
	}
}

// stopCause names what halted a chain and which terminal status the
// run takes because of it.
type stopCause struct {
	status chain.Status
	reason string
}

// RunChain executes the named chain against a repository. The run is
// persisted before the first step and after every step, so a crash
// leaves recoverable partial progress. Agent-level failures land on
// the run's terminal state; only catalog misses and storage failures
// return a hard error.
func (s *OrchestratorService) RunChain(ctx context.Context, chainName, repoRoot, caller string, mode execution.Mode, initial document.Document) (*chain.Run, error) {
	c, err := s.chains.Get(chainName)
	if err != nil {
		return nil, err
	}

	if err := s.pool.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire run slot: %w", err)
	}
	defer s.pool.Release(1)

	run := chain.NewRun(c.Name, repoRoot, caller)
	if err := s.store.StartChainRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persist chain run start: %w", err)
	}

	s.log.Info("chain run started",
		"run_id", run.ID,
		"chain", c.Name,
		"repo_root", repoRoot,
		"mode", string(mode),
		"steps", len(c.Steps),
	)

	var (
		lastOutput document.Document
		inputState = mergeDocs(nil, initial) // initial + every prior output
		finalState = document.Document{}     // step outputs only, in order
		cause      *stopCause
	)

	for i, step := range c.Steps {
		input := stepInput(step.Input, initial, lastOutput, inputState)

		rec, err := s.harness.Invoke(ctx, execution.Context{
			RepoRoot:  repoRoot,
			AgentName: step.Agent,
			Mode:      mode,
			Caller:    caller,
			Input:     input,
		})

		var res chain.StepResult
		switch {
		case errors.Is(err, execution.ErrAgentNotFound):
			// No execution record exists; the step still gets a result
			// so the run shows where and why it halted.
			res = chain.StepResult{
				Index:     i,
				StepName:  step.Name,
				AgentName: step.Agent,
				Status:    execution.StatusFailed,
				Error:     err.Error(),
			}
		case err != nil:
			// Bookkeeping failure: propagate, leaving the run open for
			// crash recovery to pick up.
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Agent, err)
		default:
			res = chain.StepResult{
				Index:       i,
				StepName:    step.Name,
				AgentName:   step.Agent,
				ExecutionID: rec.ID,
				Status:      rec.Status,
				Output:      rec.Output,
				Error:       rec.Error,
				Duration:    rec.Duration,
			}
		}

		run.Steps = append(run.Steps, res)
		if err := s.store.AppendStepResult(ctx, run.ID, res); err != nil {
			return nil, fmt.Errorf("persist step %d: %w", i, err)
		}

		cause = s.evaluateStop(c, step, res)
		if cause != nil {
			break
		}

		lastOutput = res.Output
		inputState = mergeDocs(inputState, res.Output)
		finalState = mergeDocs(finalState, res.Output)
	}

	now := time.Now().UTC()
	run.CompletedAt = &now
	if cause != nil {
		run.Status = cause.status
		run.Error = cause.reason
	} else {
		run.Status = chain.StatusCompleted
		switch c.MergeRuleOrDefault() {
		case chain.MergeAll:
			run.FinalState = finalState
		default:
			run.FinalState = lastOutput
		}
	}

	if err := s.store.CompleteChainRun(ctx, run); err != nil {
		return nil, fmt.Errorf("persist chain run result: %w", err)
	}

	s.log.Info("chain run finished",
		"run_id", run.ID,
		"chain", c.Name,
		"status", string(run.Status),
		"steps_executed", len(run.Steps),
	)
	s.emitRun(ctx, run)

	return run, nil
}

// evaluateStop decides whether the chain halts after this step, and
// with which status. Step status always halts; declared conditions are
// consulted in the configured precedence order (the chain's own, or
// the orchestrator default when the chain declares none).
func (s *OrchestratorService) evaluateStop(c *chain.Chain, step chain.Step, res chain.StepResult) *stopCause {
	switch res.Status {
	case execution.StatusFailed:
		return &stopCause{
			status: chain.StatusFailed,
			reason: fmt.Errorf("step %d (%s): %s: %w", res.Index, res.AgentName, res.Error, chain.ErrChainFailed).Error(),
		}
	case execution.StatusStopped:
		return &stopCause{
			status: chain.StatusStopped,
			reason: fmt.Sprintf("step %d (%s) stopped: %s", res.Index, res.AgentName, res.Error),
		}
	}

	precedence := c.Stop.Precedence
	if precedence == "" {
		precedence = s.precedence
	}

	first, second := step.StopOn, c.Stop.Conditions
	firstScope, secondScope := "step", "chain"
	if precedence == chain.PrecedenceChainFirst {
		first, second = second, first
		firstScope, secondScope = secondScope, firstScope
	}

	if cond := matchAny(first, res.Output); cond != "" {
		return &stopCause{
			status: chain.StatusStopped,
			reason: fmt.Sprintf("%s-level stop condition matched at step %d: %s", firstScope, res.Index, cond),
		}
	}
	if cond := matchAny(second, res.Output); cond != "" {
		return &stopCause{
			status: chain.StatusStopped,
			reason: fmt.Sprintf("%s-level stop condition matched at step %d: %s", secondScope, res.Index, cond),
		}
	}
	return nil
}

func matchAny(conds []string, out document.Document) string {
	for _, cond := range conds {
		if chain.MatchCondition(cond, out) {
			return cond
		}
	}
	return ""
}

// stepInput assembles a step's input document per its mapping rule.
func stepInput(mode chain.InputMode, initial, lastOutput, merged document.Document) document.Document {
	switch mode {
	case chain.InputInitial:
		return initial
	case chain.InputLastOutput:
		return lastOutput
	case chain.InputMerged:
		return merged
	default: // InputNone and unset
		return nil
	}
}

// mergeDocs shallow-merges src over a copy of dst; later keys win.
func mergeDocs(dst, src document.Document) document.Document {
	out := make(document.Document, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		out[k] = v
	}
	return out
}

// emitRun publishes the run's terminal event; delivery is advisory.
func (s *OrchestratorService) emitRun(ctx context.Context, run *chain.Run) {
	ev := notifier.Event{
		Subject:  "chains." + string(run.Status),
		ID:       run.ID,
		Name:     run.ChainName,
		RepoRoot: run.RepoRoot,
		Status:   string(run.Status),
		Error:    run.Error,
	}
	if err := s.notify.Emit(ctx, ev); err != nil {
		s.log.Debug("notification dropped", "run_id", run.ID, "error", err)
	}
}

// Package service implements the core use cases: the execution harness
// driving single agent invocations and the orchestrator driving chains.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/RepoWarden/internal/audit"
	"github.com/Strob0t/RepoWarden/internal/domain/agentdef"
	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
	"github.com/Strob0t/RepoWarden/internal/logger"
	"github.com/Strob0t/RepoWarden/internal/port/collaborator"
	"github.com/Strob0t/RepoWarden/internal/port/notifier"
	"github.com/Strob0t/RepoWarden/internal/port/store"
	"github.com/Strob0t/RepoWarden/internal/registry"
)

// HarnessService drives one agent invocation through its state machine:
// precondition checks, scope enforcement, mode-dependent execution,
// result construction and audit logging. It holds no per-invocation
// state, so one instance serves concurrent invocations.
type HarnessService struct {
	registry *registry.Registry
	store    store.Store
	collab   collaborator.Client
	audit    *audit.Log
	notify   notifier.Notifier
	log      *slog.Logger
}

// NewHarnessService wires a harness. The notifier may be notifier.Nop.
func NewHarnessService(reg *registry.Registry, st store.Store, collab collaborator.Client, auditLog *audit.Log, notify notifier.Notifier, log *slog.Logger) *HarnessService {
	return &HarnessService{
		registry: reg,
		store:    st,
		collab:   collab,
		audit:    auditLog,
		notify:   notify,
		log:      log,
	}
}

// Invoke runs one agent to a terminal state. Agent-level failures
// (prechecks, scope, validation, collaborator) are captured on the
// returned record, never raised. The returned error is reserved for
// invocation errors with no execution identity (unknown agent, invalid
// context) and for storage failures.
func (s *HarnessService) Invoke(ctx context.Context, ec execution.Context) (*execution.Execution, error) {
	if err := ec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid execution context: %w", err)
	}

	def := s.registry.Get(ec.AgentName)
	if def == nil {
		// No record is created: without a definition there is no
		// execution identity to mark failed.
		return nil, fmt.Errorf("%s: %w", ec.AgentName, execution.ErrAgentNotFound)
	}

	e := &execution.Execution{
		ID:         uuid.New().String(),
		AgentName:  def.Name,
		AgentClass: def.Class,
		RepoRoot:   ec.RepoRoot,
		Mode:       ec.Mode,
		Status:     execution.StatusPending,
		Caller:     ec.Caller,
		Input:      ec.Input,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.store.StartExecution(ctx, e); err != nil {
		return nil, fmt.Errorf("persist execution start: %w", err)
	}

	// The execution ID rides on the context; the logger's context handler
	// stamps it onto every record below.
	ctx = logger.WithExecutionID(ctx, e.ID)
	s.log.InfoContext(ctx, "execution started",
		"agent", def.Name,
		"class", string(def.Class),
		"mode", string(ec.Mode),
		"repo_root", ec.RepoRoot,
	)

	if err := s.checkPreconditions(ec); err != nil {
		// Precondition failures stop before any work: pending → stopped.
		s.finish(e, execution.StatusStopped, nil, err)
	} else {
		_ = e.Transition(execution.StatusRunning)
		out, runErr := s.run(ctx, def, ec)
		switch {
		case runErr != nil:
			s.finish(e, execution.StatusFailed, nil, runErr)
		default:
			s.finish(e, execution.StatusCompleted, out, nil)
		}
	}

	if err := s.store.CompleteExecution(ctx, e); err != nil {
		return nil, fmt.Errorf("persist execution result: %w", err)
	}

	s.appendAudit(ctx, e)
	s.emit(ctx, e)

	return e, nil
}

// checkPreconditions verifies the invocation can begin at all. Today
// that is the repository root existing on the filesystem.
func (s *HarnessService) checkPreconditions(ec execution.Context) error {
	info, err := os.Stat(ec.RepoRoot)
	if err != nil {
		return fmt.Errorf("repository root %s does not exist: %w", ec.RepoRoot, execution.ErrPrecheckFailed)
	}
	if !info.IsDir() {
		return fmt.Errorf("repository root %s is not a directory: %w", ec.RepoRoot, execution.ErrPrecheckFailed)
	}
	return nil
}

// run executes the mode branch and returns the output document or the
// agent-level failure.
func (s *HarnessService) run(ctx context.Context, def *agentdef.Definition, ec execution.Context) (document.Document, error) {
	switch ec.Mode {
	case execution.ModeNoop:
		// Fixed placeholder tagged with the mode; the collaborator is
		// never contacted.
		return document.Document{
			"mode":   string(execution.ModeNoop),
			"result": "placeholder",
		}, nil

	case execution.ModeSchema:
		return def.Output.Synthesize(), nil

	case execution.ModeLive:
		return s.runLive(ctx, def, ec)

	default:
		return nil, fmt.Errorf("unknown mode %q: %w", ec.Mode, execution.ErrValidationFailed)
	}
}

// runLive builds the prompt, invokes the collaborator and validates the
// structured response. Every failure on this path is an agent-level
// failure captured on the record.
func (s *HarnessService) runLive(ctx context.Context, def *agentdef.Definition, ec execution.Context) (document.Document, error) {
	if err := def.Input.Validate(ec.Input); err != nil {
		return nil, fmt.Errorf("input: %v: %w", err, execution.ErrValidationFailed)
	}

	resp, err := s.collab.Complete(ctx, buildRequest(def, ec.Input))
	if err != nil {
		// Auth, rate-limit and parse failures collapse uniformly into a
		// failed execution; retry policy belongs to the caller.
		return nil, fmt.Errorf("collaborator: %w", err)
	}

	if err := def.Output.Validate(resp.Output); err != nil {
		return nil, fmt.Errorf("output: %v: %w", err, execution.ErrValidationFailed)
	}

	if err := checkWriteIntents(def, resp.Output); err != nil {
		return nil, err
	}

	return resp.Output, nil
}

// checkWriteIntents evaluates the paths an agent intends to write,
// declared under the output's "writes" field, against the capability
// set of the agent's class. Disallow wins over allow.
func checkWriteIntents(def *agentdef.Definition, out document.Document) error {
	raw, ok := out["writes"]
	if !ok {
		return nil
	}
	paths, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("writes field must be an array of paths: %w", execution.ErrValidationFailed)
	}

	perms := def.Permissions()
	for _, p := range paths {
		target, ok := p.(string)
		if !ok {
			return fmt.Errorf("writes entries must be strings: %w", execution.ErrValidationFailed)
		}
		if !perms.CheckWrite(target) {
			return fmt.Errorf("agent %s (class %s) may not write %s: %w",
				def.Name, def.Class, target, execution.ErrScopeViolation)
		}
	}
	return nil
}

// finish stamps the terminal state onto the record exactly once.
func (s *HarnessService) finish(e *execution.Execution, status execution.Status, out document.Document, cause error) {
	now := time.Now().UTC()
	e.FinishedAt = &now
	e.Duration = now.Sub(e.StartedAt)
	_ = e.Transition(status)
	e.Output = out
	if cause != nil {
		e.Error = cause.Error()
		e.ErrorKind = execution.Kind(cause)
	}
}

// appendAudit writes the one-per-invocation audit line. A failed append
// is logged and does not alter the execution's outcome.
func (s *HarnessService) appendAudit(ctx context.Context, e *execution.Execution) {
	entry := audit.Entry{
		Timestamp:   time.Now().UTC(),
		ExecutionID: e.ID,
		AgentName:   e.AgentName,
		Mode:        string(e.Mode),
		Status:      string(e.Status),
		RepoRoot:    e.RepoRoot,
		DurationMS:  e.Duration.Milliseconds(),
	}
	if e.Error != "" {
		entry.Error = e.Error
	} else {
		entry.Summary = e.Output.Summary()
	}
	if err := s.audit.Append(entry); err != nil {
		s.log.ErrorContext(ctx, "audit append failed", "error", err)
	}
}

// emit publishes the completion event. Delivery is advisory; failures
// never affect the execution they describe.
func (s *HarnessService) emit(ctx context.Context, e *execution.Execution) {
	subject := "executions.completed"
	if e.Status != execution.StatusCompleted {
		subject = "executions." + string(e.Status)
	}
	ev := notifier.Event{
		Subject:  subject,
		ID:       e.ID,
		Name:     e.AgentName,
		RepoRoot: e.RepoRoot,
		Status:   string(e.Status),
		Error:    e.Error,
	}
	if err := s.notify.Emit(ctx, ev); err != nil {
		s.log.DebugContext(ctx, "notification dropped", "error", err)
	}
}

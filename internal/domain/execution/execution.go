// Package execution defines the Execution domain entity: one invocation
// of one agent by the harness, from precondition checks to a terminal
// result.
package execution

import (
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/permission"
)

// Status represents the current state of an execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether the status is one of the terminal states.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// allowedTransitions encodes the monotonic state machine:
// pending → running → exactly one terminal state. No terminal state
// transitions anywhere.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusRunning: {},
		StatusStopped: {}, // precondition failure before any work
	},
	StatusRunning: {
		StatusCompleted: {},
		StatusFailed:    {},
		StatusStopped:   {},
	},
}

// ErrInvalidTransition indicates a status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidateTransition returns an error if from → to is not a legal move.
func ValidateTransition(from, to Status) error {
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	return nil
}

// Mode governs whether the external collaborator is actually invoked.
type Mode string

const (
	// ModeNoop synthesizes a fixed placeholder output and never
	// contacts the collaborator.
	ModeNoop Mode = "no-op"
	// ModeSchema synthesizes output conforming to the agent's declared
	// output shape; the collaborator is never contacted.
	ModeSchema Mode = "schema"
	// ModeLive builds a prompt and invokes the collaborator.
	ModeLive Mode = "live"
)

// IsValid reports whether m is a known execution mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeNoop, ModeSchema, ModeLive:
		return true
	}
	return false
}

// Context carries the per-invocation parameters of a harness call.
// It is never persisted; its effects are captured on the Execution.
type Context struct {
	RepoRoot  string            `json:"repo_root"`
	AgentName string            `json:"agent_name"`
	Mode      Mode              `json:"mode"`
	Caller    string            `json:"caller,omitempty"`
	Input     document.Document `json:"input,omitempty"`
}

// Validate checks the invocation parameters.
func (c *Context) Validate() error {
	if c.AgentName == "" {
		return errors.New("agent_name is required")
	}
	if c.RepoRoot == "" {
		return errors.New("repo_root is required")
	}
	if !c.Mode.IsValid() {
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	return nil
}

// Execution is the persisted record of one agent invocation.
type Execution struct {
	ID         string            `json:"id"`
	AgentName  string            `json:"agent_name"`
	AgentClass permission.Class  `json:"agent_class"`
	RepoRoot   string            `json:"repo_root"`
	Mode       Mode              `json:"mode"`
	Status     Status            `json:"status"`
	Caller     string            `json:"caller,omitempty"`
	Input      document.Document `json:"input,omitempty"`
	Output     document.Document `json:"output,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  string            `json:"error_kind,omitempty"`
	Duration   time.Duration     `json:"duration_ns"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// Transition moves the execution to a new status, enforcing the state
// machine.
func (e *Execution) Transition(to Status) error {
	if err := ValidateTransition(e.Status, to); err != nil {
		return err
	}
	e.Status = to
	return nil
}

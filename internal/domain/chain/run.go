package chain

import (
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
)

// Status represents the state of a chain run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusStopped   Status = "stopped"
)

// IsTerminal reports whether the status is terminal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped:
		return true
	}
	return false
}

// StepResult is the per-step record appended to a run as steps finish.
type StepResult struct {
	Index       int               `json:"index"`
	StepName    string            `json:"step_name,omitempty"`
	AgentName   string            `json:"agent_name"`
	ExecutionID string            `json:"execution_id"`
	Status      execution.Status  `json:"status"`
	Output      document.Document `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	Duration    time.Duration     `json:"duration_ns"`
}

// Run is the persisted record of one chain execution. It is created
// when the chain starts, mutated only by appending step results, and
// frozen once a terminal status is set.
type Run struct {
	ID          string            `json:"id"`
	ChainName   string            `json:"chain_name"`
	RepoRoot    string            `json:"repo_root"`
	Caller      string            `json:"caller,omitempty"`
	Status      Status            `json:"status"`
	Steps       []StepResult      `json:"steps"`
	FinalState  document.Document `json:"final_state,omitempty"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// NewRun creates a run in the running state with a fresh globally
// unique identifier.
func NewRun(chainName, repoRoot, caller string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		ChainName: chainName,
		RepoRoot:  repoRoot,
		Caller:    caller,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

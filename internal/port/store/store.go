// Package store defines the persistence port for agent executions and
// chain runs. Adapters must be durable and crash-recoverable: every
// mutating call reaches stable storage before returning.
package store

import (
	"context"

	"github.com/Strob0t/RepoWarden/internal/domain/chain"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
)

// RunFilter narrows and pages a run listing. Zero values mean
// "no filter"; Limit 0 means no limit.
type RunFilter struct {
	RepoRoot  string
	ChainName string
	Status    chain.Status
	Limit     int
	Offset    int
}

// ExecutionFilter narrows and pages an execution listing.
type ExecutionFilter struct {
	RepoRoot  string
	AgentName string
	Status    execution.Status
	Limit     int
	Offset    int
}

// Store is the port interface for the state manager.
type Store interface {
	// StartExecution persists a new execution record. The record's id
	// must be unique.
	StartExecution(ctx context.Context, e *execution.Execution) error

	// CompleteExecution updates an existing record with its terminal
	// state. Idempotent by id; an unknown id is an error
	// (domain.ErrNotFound).
	CompleteExecution(ctx context.Context, e *execution.Execution) error

	// GetExecution returns the execution with the given id, or
	// domain.ErrNotFound.
	GetExecution(ctx context.Context, id string) (*execution.Execution, error)

	// ListExecutions returns executions matching the filter, newest
	// first.
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]execution.Execution, error)

	// DeleteExecution removes the record and its index entry as one
	// logical operation.
	DeleteExecution(ctx context.Context, id string) error

	// StartChainRun persists a freshly created run so partial progress
	// is recoverable from the first step on.
	StartChainRun(ctx context.Context, r *chain.Run) error

	// AppendStepResult appends a completed step to an existing run.
	AppendStepResult(ctx context.Context, runID string, res chain.StepResult) error

	// CompleteChainRun writes the run's terminal status, final state
	// and timestamps.
	CompleteChainRun(ctx context.Context, r *chain.Run) error

	// GetChainRun returns the run with the given id, or
	// domain.ErrNotFound.
	GetChainRun(ctx context.Context, id string) (*chain.Run, error)

	// ListRuns returns runs matching the filter, newest first.
	ListRuns(ctx context.Context, f RunFilter) ([]chain.Run, error)

	// GetLastRun returns the most recent run of the named chain
	// against the given repository, or domain.ErrNotFound.
	GetLastRun(ctx context.Context, repoRoot, chainName string) (*chain.Run, error)

	// DeleteRun removes the stored record and the matching index entry
	// as a single logical operation.
	DeleteRun(ctx context.Context, id string) error

	// Close releases the store's resources.
	Close() error
}

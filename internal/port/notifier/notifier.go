// Package notifier defines the downstream notification boundary.
// Events are fire-and-forget: a delivery failure must never fail or
// delay the execution or chain it describes.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Event describes a completed or failed execution or chain run.
type Event struct {
	Subject  string `json:"subject"`  // e.g. "executions.completed", "chains.failed"
	ID       string `json:"id"`       // execution or run id
	Name     string `json:"name"`     // agent or chain name
	RepoRoot string `json:"repo_root"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

// Notifier is the port interface for emitting completion events.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "nats").
	Name() string

	// Emit delivers an event. Callers treat any error as advisory.
	Emit(ctx context.Context, ev Event) error
}

// Nop is a Notifier that discards every event. Used when no downstream
// consumer is configured.
type Nop struct{}

func (Nop) Name() string                      { return "nop" }
func (Nop) Emit(context.Context, Event) error { return nil }

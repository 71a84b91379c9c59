// Package collaborator defines the language-model boundary. The core
// treats the collaborator as opaque: it sends a fully-formed prompt and
// receives either a structured response or one of a fixed set of
// failure kinds.
package collaborator

import (
	"context"
	"errors"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
)

// Failure kinds. The harness collapses all three into a failed
// live-mode execution and never retries internally; retry policy
// belongs to the caller.
var (
	ErrAuth        = errors.New("collaborator: authentication failure")
	ErrRateLimited = errors.New("collaborator: rate limited")
	ErrParse       = errors.New("collaborator: response parse failure")
)

// Request is a fully-formed prompt for one agent invocation.
type Request struct {
	System string            `json:"system"`
	Prompt string            `json:"prompt"`
	Input  document.Document `json:"input,omitempty"`
	Model  string            `json:"model,omitempty"`
}

// Response is the collaborator's structured reply.
type Response struct {
	Output document.Document `json:"output"`
	Model  string            `json:"model,omitempty"`
}

// Client is the port interface for the language-model collaborator.
type Client interface {
	// Complete sends the request and blocks until a structured
	// response or a failure is available. This is the system's one
	// unbounded-latency operation.
	Complete(ctx context.Context, req Request) (*Response, error)
}

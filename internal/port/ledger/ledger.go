// Package ledger defines the boundary to the long-term entity ledger:
// a versioned key-value registry of tracked entities that lives outside
// this system. Only REGISTRY_STATE agents consult it; the core ships
// the port and leaves the implementation to the deployment.
package ledger

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("ledger: entry not found")

	ErrAlreadyExists = errors.New("ledger: entry already exists")

	// ErrChecksumMismatch indicates a conditional write lost: the
	// entry's stored checksum no longer matches the one the caller
	// read.
	ErrChecksumMismatch = errors.New("ledger: checksum mismatch")
)

// Entry is one versioned ledger record. The value is opaque to the
// core; the checksum identifies the revision a conditional write is
// based on.
type Entry struct {
	Key      string `json:"key"`
	Value    []byte `json:"value"`
	Checksum string `json:"checksum"`
	Version  int64  `json:"version"`
}

// Ledger is the port interface to the entity ledger.
type Ledger interface {
	// Get returns the current entry for key, or ErrNotFound.
	Get(ctx context.Context, key string) (*Entry, error)

	// Put writes an entry. An empty checksum creates the key and fails
	// with ErrAlreadyExists if it is present; a non-empty checksum
	// updates conditionally and fails with ErrChecksumMismatch when the
	// stored revision has moved.
	Put(ctx context.Context, e Entry) (*Entry, error)

	// Delete removes the entry for key, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
}

// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrStorageCorrupt indicates the store's index and records disagree:
// an indexed id without a record, or a record unreachable from the
// index. It is fatal and surfaced, never silently repaired.
var ErrStorageCorrupt = errors.New("storage corrupt: index and records inconsistent")

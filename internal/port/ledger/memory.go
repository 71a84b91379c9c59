package ledger

import (
	"context"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Memory is an in-process Ledger. It backs single-node deployments and
// serves as the reference for the conditional-write contract every
// implementation must honor.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemory returns an empty in-process ledger.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

// checksum fingerprints a value revision.
func checksum(value []byte) string {
	sum := blake2b.Sum256(value)
	return hex.EncodeToString(sum[:])
}

// Get returns a copy of the current entry for key.
func (m *Memory) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := e
	out.Value = append([]byte(nil), e.Value...)
	return &out, nil
}

// Put applies the conditional-write contract: an empty checksum creates
// the key, a non-empty checksum must match the stored revision.
func (m *Memory) Put(_ context.Context, e Entry) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, exists := m.entries[e.Key]
	switch {
	case e.Checksum == "" && exists:
		return nil, ErrAlreadyExists
	case e.Checksum != "" && !exists:
		return nil, ErrNotFound
	case e.Checksum != "" && e.Checksum != cur.Checksum:
		return nil, ErrChecksumMismatch
	}

	stored := Entry{
		Key:      e.Key,
		Value:    append([]byte(nil), e.Value...),
		Checksum: checksum(e.Value),
		Version:  cur.Version + 1,
	}
	m.entries[e.Key] = stored

	out := stored
	out.Value = append([]byte(nil), stored.Value...)
	return &out, nil
}

// Delete removes the entry for key.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return ErrNotFound
	}
	delete(m.entries, key)
	return nil
}

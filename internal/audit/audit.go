// Package audit provides the append-only audit log: one structured,
// newline-delimited entry per execution attempt, independent of the
// run/execution store.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one audit-log line.
type Entry struct {
	Timestamp   time.Time `json:"ts"`
	ExecutionID string    `json:"execution_id"`
	AgentName   string    `json:"agent_name"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	RepoRoot    string    `json:"repo_root"`
	DurationMS  int64     `json:"duration_ms"`
	Summary     string    `json:"summary,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Log appends entries to a newline-delimited JSON file. Appends are
// serialized so concurrent writers always emit whole lines and the log
// stays parseable under interleaving.
type Log struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates or opens the audit log at path in append-only mode,
// creating parent directories as needed.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("audit dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // G304: path comes from config
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Log{file: f}, nil
}

// Append writes one complete entry line and syncs it to stable storage.
func (l *Log) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

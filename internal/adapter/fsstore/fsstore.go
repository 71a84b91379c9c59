// Package fsstore implements the store port on the local filesystem:
// one JSON record file per execution/run id plus an index file per
// storage area, rewritten atomically on every mutation. Records and
// index survive process restart; a record/index mismatch is surfaced
// as corruption, never silently repaired.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Strob0t/RepoWarden/internal/domain"
	"github.com/Strob0t/RepoWarden/internal/domain/chain"
	"github.com/Strob0t/RepoWarden/internal/domain/execution"
	"github.com/Strob0t/RepoWarden/internal/port/store"
)

const (
	executionsDir = "executions"
	chainsDir     = "chains"
	indexFile     = "index.json"
)

// indexEntry is the minimal listing metadata kept per id. The invariant
// is bidirectional: every indexed id has a record file and every record
// file is reachable from the index.
type indexEntry struct {
	Name      string    `json:"name"` // agent name or chain name
	RepoRoot  string    `json:"repo_root"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// area is one storage area: a directory of record files plus its index.
// A single writer lock serializes index mutation per area.
type area struct {
	mu  sync.Mutex
	dir string
}

// Store implements store.Store on the filesystem.
type Store struct {
	executions *area
	runs       *area
}

var _ store.Store = (*Store)(nil)

// Open prepares the storage areas under dataDir, creating them if
// missing. Existing records and indexes are picked up as-is.
func Open(dataDir string) (*Store, error) {
	s := &Store{
		executions: &area{dir: filepath.Join(dataDir, executionsDir)},
		runs:       &area{dir: filepath.Join(dataDir, chainsDir)},
	}
	for _, a := range []*area{s.executions, s.runs} {
		if err := os.MkdirAll(a.dir, 0o750); err != nil {
			return nil, fmt.Errorf("create storage area %s: %w", a.dir, err)
		}
	}
	return s, nil
}

// Close is a no-op for the filesystem store; it exists to satisfy the
// port.
func (s *Store) Close() error { return nil }

// --- Executions ---

func (s *Store) StartExecution(_ context.Context, e *execution.Execution) error {
	return s.executions.create(e.ID, e, indexEntry{
		Name:      e.AgentName,
		RepoRoot:  e.RepoRoot,
		Status:    string(e.Status),
		StartedAt: e.StartedAt,
	})
}

func (s *Store) CompleteExecution(_ context.Context, e *execution.Execution) error {
	return s.executions.update(e.ID, e, string(e.Status))
}

func (s *Store) GetExecution(_ context.Context, id string) (*execution.Execution, error) {
	var e execution.Execution
	if err := s.executions.get(id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListExecutions(_ context.Context, f store.ExecutionFilter) ([]execution.Execution, error) {
	ids, err := s.executions.list(func(e indexEntry) bool {
		if f.RepoRoot != "" && e.RepoRoot != f.RepoRoot {
			return false
		}
		if f.AgentName != "" && e.Name != f.AgentName {
			return false
		}
		if f.Status != "" && e.Status != string(f.Status) {
			return false
		}
		return true
	}, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}

	out := make([]execution.Execution, 0, len(ids))
	for _, id := range ids {
		var e execution.Execution
		if err := s.executions.get(id, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) DeleteExecution(_ context.Context, id string) error {
	return s.executions.delete(id)
}

// --- Chain runs ---

func (s *Store) StartChainRun(_ context.Context, r *chain.Run) error {
	return s.runs.create(r.ID, r, indexEntry{
		Name:      r.ChainName,
		RepoRoot:  r.RepoRoot,
		Status:    string(r.Status),
		StartedAt: r.StartedAt,
	})
}

func (s *Store) AppendStepResult(_ context.Context, runID string, res chain.StepResult) error {
	var r chain.Run
	if err := s.runs.get(runID, &r); err != nil {
		return err
	}
	r.Steps = append(r.Steps, res)
	return s.runs.update(runID, &r, string(r.Status))
}

func (s *Store) CompleteChainRun(_ context.Context, r *chain.Run) error {
	return s.runs.update(r.ID, r, string(r.Status))
}

func (s *Store) GetChainRun(_ context.Context, id string) (*chain.Run, error) {
	var r chain.Run
	if err := s.runs.get(id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRuns(_ context.Context, f store.RunFilter) ([]chain.Run, error) {
	ids, err := s.runs.list(func(e indexEntry) bool {
		if f.RepoRoot != "" && e.RepoRoot != f.RepoRoot {
			return false
		}
		if f.ChainName != "" && e.Name != f.ChainName {
			return false
		}
		if f.Status != "" && e.Status != string(f.Status) {
			return false
		}
		return true
	}, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}

	out := make([]chain.Run, 0, len(ids))
	for _, id := range ids {
		var r chain.Run
		if err := s.runs.get(id, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) GetLastRun(ctx context.Context, repoRoot, chainName string) (*chain.Run, error) {
	runs, err := s.ListRuns(ctx, store.RunFilter{RepoRoot: repoRoot, ChainName: chainName, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("last run of %q in %s: %w", chainName, repoRoot, domain.ErrNotFound)
	}
	return &runs[0], nil
}

func (s *Store) DeleteRun(_ context.Context, id string) error {
	return s.runs.delete(id)
}

// --- area primitives ---

func (a *area) recordPath(id string) string {
	return filepath.Join(a.dir, id+".json")
}

// create persists a new record and its index entry.
func (a *area) create(id string, record any, entry indexEntry) error {
	if id == "" {
		return errors.New("record id is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	if _, exists := idx[id]; exists {
		return fmt.Errorf("record %s already exists", id)
	}

	if err := writeAtomic(a.recordPath(id), record); err != nil {
		return err
	}
	idx[id] = entry
	return a.saveIndex(idx)
}

// update rewrites an existing record and refreshes its index status.
// Writing to an id that does not exist is an error.
func (a *area) update(id string, record any, status string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	entry, ok := idx[id]
	if !ok {
		if exists(a.recordPath(id)) {
			return fmt.Errorf("record %s present without index entry: %w", id, domain.ErrStorageCorrupt)
		}
		return fmt.Errorf("update %s: %w", id, domain.ErrNotFound)
	}

	if err := writeAtomic(a.recordPath(id), record); err != nil {
		return err
	}
	entry.Status = status
	idx[id] = entry
	return a.saveIndex(idx)
}

// get reads the record for id, enforcing the index invariant.
func (a *area) get(id string, out any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := idx[id]; !ok {
		if exists(a.recordPath(id)) {
			return fmt.Errorf("record %s present without index entry: %w", id, domain.ErrStorageCorrupt)
		}
		return fmt.Errorf("get %s: %w", id, domain.ErrNotFound)
	}

	data, err := os.ReadFile(a.recordPath(id)) //nolint:gosec // path built from validated id
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("record %s indexed but missing: %w", id, domain.ErrStorageCorrupt)
		}
		return fmt.Errorf("read record %s: %w", id, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode record %s: %w", id, err)
	}
	return nil
}

// delete removes the record file and the index entry as one logical
// operation under the writer lock.
func (a *area) delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, err := a.loadIndex()
	if err != nil {
		return err
	}
	if _, ok := idx[id]; !ok {
		if exists(a.recordPath(id)) {
			return fmt.Errorf("record %s present without index entry: %w", id, domain.ErrStorageCorrupt)
		}
		return fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)
	}

	// Index first: a crash between the two steps leaves an orphaned
	// record file, which get() reports as corruption rather than
	// resurrecting the id.
	delete(idx, id)
	if err := a.saveIndex(idx); err != nil {
		return err
	}
	if err := os.Remove(a.recordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record %s: %w", id, err)
	}
	return nil
}

// list returns ids matching the filter, newest first.
func (a *area) list(match func(indexEntry) bool, limit, offset int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, err := a.loadIndex()
	if err != nil {
		return nil, err
	}

	type pair struct {
		id    string
		entry indexEntry
	}
	var pairs []pair
	for id, e := range idx {
		if match(e) {
			pairs = append(pairs, pair{id, e})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if !pairs[i].entry.StartedAt.Equal(pairs[j].entry.StartedAt) {
			return pairs[i].entry.StartedAt.After(pairs[j].entry.StartedAt)
		}
		return pairs[i].id < pairs[j].id
	})

	if offset > len(pairs) {
		offset = len(pairs)
	}
	pairs = pairs[offset:]
	if limit > 0 && limit < len(pairs) {
		pairs = pairs[:limit]
	}

	ids := make([]string, len(pairs))
	for i, p := range pairs {
		ids[i] = p.id
	}
	return ids, nil
}

// loadIndex reads the area's index; a missing index file is an empty
// index.
func (a *area) loadIndex() (map[string]indexEntry, error) {
	data, err := os.ReadFile(filepath.Join(a.dir, indexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]indexEntry{}, nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}
	idx := map[string]indexEntry{}
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode index: %w", domain.ErrStorageCorrupt)
	}
	return idx, nil
}

// saveIndex rewrites the index atomically: write to a temporary file in
// the same directory, fsync, then rename over the old index. A crash
// mid-write never leaves a truncated index.
func (a *area) saveIndex(idx map[string]indexEntry) error {
	return writeAtomic(filepath.Join(a.dir, indexFile), idx)
}

func writeAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

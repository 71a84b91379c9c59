package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Strob0t/RepoWarden/internal/adapter/fsstore"
	"github.com/Strob0t/RepoWarden/internal/audit"
	"github.com/Strob0t/RepoWarden/internal/port/collaborator"
	"github.com/Strob0t/RepoWarden/internal/port/notifier"
	"github.com/Strob0t/RepoWarden/internal/registry"
)

// testAgentDoc renders a minimal valid definition document. The output
// shape declares clean (bool) and summary (string), both required.
func testAgentDoc(name, class string) string {
	return fmt.Sprintf(`# AGENT: %s (%s)

## ROLE
Test double for harness runs.

## GOAL
Produce a verdict document.

## NON-GOALS
- Changing anything

## SCOPE/PERMISSIONS
### Allowed
- content/
### Disallowed
- src/

## OPERATING RULES
- Be deterministic

## INPUT
- repo_root: string (required)

## PRECHECKS
- Repository root exists

## TASKS
- Inspect the repository

## VALIDATION
- Verdict fields are set

## OUTPUT
- clean: bool (required)
- summary: string (required)

## FAILURE HANDLING
- Abort on unreadable tree

## STOP CONDITIONS
- Verdict produced
`, name, class)
}

// newTestRegistry loads a registry with the named agents, all class
// READ_ONLY_SCAN unless the name carries a "class:" suffix.
func newTestRegistry(t *testing.T, agents map[string]string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	i := 0
	for name, class := range agents {
		path := filepath.Join(dir, fmt.Sprintf("agent-%d.md", i))
		if err := os.WriteFile(path, []byte(testAgentDoc(name, class)), 0o644); err != nil {
			t.Fatal(err)
		}
		i++
	}
	reg, err := registry.LoadOnce(dir)
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return reg
}

// fakeCollab is a scripted collaborator that counts calls.
type fakeCollab struct {
	mu       sync.Mutex
	requests []collaborator.Request
	resp     *collaborator.Response
	err      error
	// respFor overrides resp per agent name extracted from the system
	// prompt; keyed by substring match.
	respFor map[string]*collaborator.Response
	errFor  map[string]error
}

func (f *fakeCollab) Complete(_ context.Context, req collaborator.Request) (*collaborator.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	for key, err := range f.errFor {
		if key != "" && strings.Contains(req.System, key) {
			return nil, err
		}
	}
	for key, resp := range f.respFor {
		if key != "" && strings.Contains(req.System, key) {
			return resp, nil
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakeCollab) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// fakeNotifier records emitted events.
type fakeNotifier struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Emit(_ context.Context, ev notifier.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// harnessFixture bundles a harness with its observable collaborators.
type harnessFixture struct {
	harness  *HarnessService
	store    *fsstore.Store
	collab   *fakeCollab
	notify   *fakeNotifier
	auditLog string
	repoRoot string
}

func newHarnessFixture(t *testing.T, agents map[string]string, collab *fakeCollab) *harnessFixture {
	t.Helper()

	reg := newTestRegistry(t, agents)

	st, err := fsstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	auditPath := filepath.Join(t.TempDir(), "audit.jsonl")
	auditLog, err := audit.Open(auditPath)
	if err != nil {
		t.Fatalf("open audit: %v", err)
	}
	t.Cleanup(func() { _ = auditLog.Close() })

	notify := &fakeNotifier{}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	return &harnessFixture{
		harness:  NewHarnessService(reg, st, collab, auditLog, notify, log),
		store:    st,
		collab:   collab,
		notify:   notify,
		auditLog: auditPath,
		repoRoot: t.TempDir(),
	}
}

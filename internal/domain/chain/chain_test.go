package chain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
)

func validChain() Chain {
	return Chain{
		Name: "test",
		Steps: []Step{
			{Name: "Scan", Agent: "repo-scanner", Input: InputInitial},
			{Name: "Plan", Agent: "plan-synthesizer", Input: InputLastOutput},
		},
	}
}

func TestChainValidate(t *testing.T) {
	c := validChain()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestChainValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Chain)
		wantErr error
	}{
		{"missing name", func(c *Chain) { c.Name = "" }, ErrNameRequired},
		{"no steps", func(c *Chain) { c.Steps = nil }, ErrNoSteps},
		{"step missing agent", func(c *Chain) { c.Steps[1].Agent = "" }, ErrStepMissingAgent},
		{"bad input mode", func(c *Chain) { c.Steps[0].Input = "teleport" }, ErrInvalidInputMode},
		{"bad precedence", func(c *Chain) { c.Stop.Precedence = "coin-flip" }, ErrInvalidPrecedence},
		{"bad merge rule", func(c *Chain) { c.Merge = "average" }, ErrInvalidMergeRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validChain()
			tt.modify(&c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	c := validChain()
	if c.Precedence() != PrecedenceStepFirst {
		t.Errorf("default precedence = %s", c.Precedence())
	}
	if c.MergeRuleOrDefault() != MergeLast {
		t.Errorf("default merge = %s", c.MergeRuleOrDefault())
	}
	c.Stop.Precedence = PrecedenceChainFirst
	c.Merge = MergeAll
	if c.Precedence() != PrecedenceChainFirst || c.MergeRuleOrDefault() != MergeAll {
		t.Error("explicit settings not honored")
	}
}

func TestMatchCondition(t *testing.T) {
	out := document.Document{
		"clean":    true,
		"count":    float64(3),
		"status":   "dirty",
		"empty":    "",
		"disabled": false,
	}

	tests := []struct {
		cond string
		want bool
	}{
		{"clean", true},
		{"clean=true", true},
		{"clean=false", false},
		{"count=3", true},
		{"status=dirty", true},
		{"status=clean", false},
		{"empty", false},
		{"disabled", false},
		{"absent", false},
		{"absent=x", false},
	}

	for _, tt := range tests {
		t.Run(tt.cond, func(t *testing.T) {
			if got := MatchCondition(tt.cond, out); got != tt.want {
				t.Errorf("MatchCondition(%q) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}

	if MatchCondition("clean", nil) {
		t.Error("nil output must never match")
	}
}

func TestBuiltinChainsValidate(t *testing.T) {
	chains := BuiltinChains()
	if len(chains) == 0 {
		t.Fatal("expected built-in chains")
	}
	for _, c := range chains {
		if err := c.Validate(); err != nil {
			t.Errorf("builtin %q: %v", c.Name, err)
		}
		if !c.Builtin {
			t.Errorf("builtin %q not flagged", c.Name)
		}
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()

	good := `name: custom-scan
description: scan only
steps:
  - name: Scan
    agent: repo-scanner
    input: initial
stop:
  precedence: chain-first
  conditions:
    - clean=true
`
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(good), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600); err != nil {
		t.Fatal(err)
	}

	chains, err := LoadFromDirectory(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chains) != 1 {
		t.Fatalf("expected 1 chain, got %d", len(chains))
	}
	if chains[0].Name != "custom-scan" || chains[0].Stop.Precedence != PrecedenceChainFirst {
		t.Errorf("chain = %+v", chains[0])
	}
}

func TestLoadFromDirectoryMissing(t *testing.T) {
	chains, err := LoadFromDirectory(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing directory should not error: %v", err)
	}
	if chains != nil {
		t.Errorf("expected nil, got %v", chains)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("name: broken\nsteps: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); !errors.Is(err, ErrNoSteps) {
		t.Errorf("expected ErrNoSteps, got %v", err)
	}
}

func TestNewRun(t *testing.T) {
	r := NewRun("scan-and-plan", "/repo", "ops")
	if r.ID == "" {
		t.Error("run id must be set")
	}
	if r.Status != StatusRunning {
		t.Errorf("status = %s", r.Status)
	}
	if r.StartedAt.IsZero() {
		t.Error("started_at must be set")
	}
	other := NewRun("scan-and-plan", "/repo", "ops")
	if other.ID == r.ID {
		t.Error("run ids must be unique")
	}
}

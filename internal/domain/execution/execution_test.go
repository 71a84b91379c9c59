package execution

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusStopped, true},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusStopped, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusCompleted, StatusRunning, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusCompleted, false},
		{StatusStopped, StatusRunning, false},
	}

	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", tt.from, tt.to, err)
		}
	}
}

func TestExecutionTransition(t *testing.T) {
	e := &Execution{Status: StatusPending}
	if err := e.Transition(StatusRunning); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}
	if err := e.Transition(StatusCompleted); err != nil {
		t.Fatalf("running -> completed: %v", err)
	}
	if err := e.Transition(StatusFailed); err == nil {
		t.Fatal("terminal -> terminal must be rejected")
	}
	if e.Status != StatusCompleted {
		t.Errorf("status mutated by rejected transition: %s", e.Status)
	}
}

func TestContextValidate(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		wantErr bool
	}{
		{"valid", Context{RepoRoot: "/repo", AgentName: "scanner", Mode: ModeNoop}, false},
		{"missing agent", Context{RepoRoot: "/repo", Mode: ModeNoop}, true},
		{"missing root", Context{AgentName: "scanner", Mode: ModeLive}, true},
		{"bad mode", Context{RepoRoot: "/repo", AgentName: "scanner", Mode: "dry"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ctx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrAgentNotFound, "agent_not_found"},
		{ErrPrecheckFailed, "precheck_failed"},
		{ErrScopeViolation, "scope_violation"},
		{ErrValidationFailed, "validation_failed"},
		{errors.New("rate limited"), "collaborator_failure"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

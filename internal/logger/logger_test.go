package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/Strob0t/RepoWarden/internal/config"
)

func TestNew(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc"}
	l, closer := New(cfg)
	defer closer.Close()
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewAsync(t *testing.T) {
	cfg := config.Logging{Level: "debug", Service: "test-svc", Async: true}
	l, closer := New(cfg)
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	closer.Close()
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input).String()
			if got != tt.want {
				t.Errorf("parseLevel(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestExecutionIDContext(t *testing.T) {
	ctx := context.Background()

	// Empty context returns empty string
	if got := ExecutionID(ctx); got != "" {
		t.Errorf("expected empty execution ID, got %q", got)
	}

	// Set and retrieve
	ctx = WithExecutionID(ctx, "exec-123")
	if got := ExecutionID(ctx); got != "exec-123" {
		t.Errorf("expected exec-123, got %q", got)
	}
}

func TestCtxHandlerStampsExecutionID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(ctxHandler{inner: slog.NewJSONHandler(&buf, nil)})

	ctx := WithExecutionID(context.Background(), "exec-123")
	log.InfoContext(ctx, "execution started", "agent", "repo-scanner")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output not valid JSON: %v (%q)", err, buf.String())
	}
	if line["execution_id"] != "exec-123" {
		t.Fatalf("execution_id missing from record: %q", buf.String())
	}

	// Without an ID on the context the attribute is simply absent.
	buf.Reset()
	log.InfoContext(context.Background(), "execution started")
	line = map[string]any{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output not valid JSON: %v (%q)", err, buf.String())
	}
	if _, ok := line["execution_id"]; ok {
		t.Fatalf("unexpected execution_id on record: %q", buf.String())
	}
}

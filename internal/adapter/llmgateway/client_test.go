package llmgateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/port/collaborator"
	"github.com/Strob0t/RepoWarden/internal/resilience"
)

func gatewayStub(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != completionsPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer key")
		}
		if status >= 400 {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		resp := map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestCompleteSuccess(t *testing.T) {
	srv := gatewayStub(t, http.StatusOK, `{"summary":"ok","clean":true}`)
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-test")
	resp, err := c.Complete(context.Background(), collaborator.Request{
		System: "you are a scanner",
		Prompt: "scan the repo",
		Input:  document.Document{"target": "content/"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Output["summary"] != "ok" || resp.Output["clean"] != true {
		t.Errorf("output = %+v", resp.Output)
	}
	if resp.Model != "gpt-test" {
		t.Errorf("model = %s", resp.Model)
	}
}

func TestCompleteFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		wantErr error
	}{
		{"auth 401", http.StatusUnauthorized, "", collaborator.ErrAuth},
		{"auth 403", http.StatusForbidden, "", collaborator.ErrAuth},
		{"rate limit", http.StatusTooManyRequests, "", collaborator.ErrRateLimited},
		{"server error", http.StatusInternalServerError, "", collaborator.ErrParse},
		{"non-json content", http.StatusOK, "sure, here is your answer", collaborator.ErrParse},
		{"non-object content", http.StatusOK, `[1,2]`, collaborator.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gatewayStub(t, tt.status, tt.content)
			defer srv.Close()

			c := NewClient(srv.URL, "test-key", "gpt-test")
			_, err := c.Complete(context.Background(), collaborator.Request{Prompt: "x"})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompleteWithBreaker(t *testing.T) {
	srv := gatewayStub(t, http.StatusTooManyRequests, "")
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "gpt-test")
	c.SetBreaker(resilience.NewBreaker(1, time.Hour))

	if _, err := c.Complete(context.Background(), collaborator.Request{Prompt: "x"}); !errors.Is(err, collaborator.ErrRateLimited) {
		t.Fatalf("first call: %v", err)
	}
	if _, err := c.Complete(context.Background(), collaborator.Request{Prompt: "x"}); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("second call should hit the open circuit, got %v", err)
	}
}

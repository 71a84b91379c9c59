// Package llmgateway implements the collaborator port against an
// OpenAI-compatible LLM proxy (chat completions API). The gateway is
// the system's one unbounded-latency dependency; calls are optionally
// guarded by a circuit breaker but never retried here.
package llmgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/port/collaborator"
	"github.com/Strob0t/RepoWarden/internal/resilience"
)

const completionsPath = "/v1/chat/completions"

// Client talks to an OpenAI-compatible gateway (LiteLLM proxy or
// similar).
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

var _ collaborator.Client = (*Client)(nil)

// NewClient creates a gateway client. The default model is used when a
// request does not name one. No client-side timeout is set: live-mode
// latency is bounded by the caller's context, not by the adapter.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

// SetBreaker attaches a circuit breaker to all outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt and decodes the reply as a structured
// document. Failures collapse into the three fixed collaborator kinds.
func (c *Client) Complete(ctx context.Context, req collaborator.Request) (*collaborator.Response, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	user := req.Prompt
	if len(req.Input) > 0 {
		inputJSON, err := req.Input.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode input: %w", err)
		}
		user = fmt.Sprintf("%s\n\nINPUT:\n%s", req.Prompt, inputJSON)
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp *collaborator.Response
	call := func() error {
		var callErr error
		resp, callErr = c.doComplete(ctx, body)
		return callErr
	}

	if c.breaker != nil {
		if err := c.breaker.Execute(call); err != nil {
			return nil, err
		}
		return resp, nil
	}
	if err := call(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) doComplete(ctx context.Context, body []byte) (*collaborator.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized || httpResp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("gateway status %d: %w", httpResp.StatusCode, collaborator.ErrAuth)
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("gateway status %d: %w", httpResp.StatusCode, collaborator.ErrRateLimited)
	case httpResp.StatusCode >= 400:
		return nil, fmt.Errorf("gateway status %d: %s: %w", httpResp.StatusCode, truncate(data), collaborator.ErrParse)
	}

	var chat chatResponse
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", collaborator.ErrParse)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("empty choices: %w", collaborator.ErrParse)
	}

	out, err := document.Decode([]byte(chat.Choices[0].Message.Content))
	if err != nil {
		return nil, fmt.Errorf("decode output document: %w", collaborator.ErrParse)
	}

	return &collaborator.Response{Output: out, Model: chat.Model}, nil
}

func truncate(data []byte) string {
	const max = 200
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

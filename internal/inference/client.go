// Package inference provides the client for the external AI plan
// inference service.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the narrow interface the planner and orchestrator consume:
// one free-text prompt in, one free-text response out.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HTTPClient calls an inference service over HTTP. The service accepts
// {"prompt": "..."} and answers {"response": "...", "error": "..."}.
type HTTPClient struct {
	url    string
	client *http.Client
}

// Config holds inference client configuration.
type Config struct {
	// URL of the inference endpoint.
	URL string

	// Timeout for a single request (default: 60s). Plan generation can
	// be slow; step execution never waits on inference.
	Timeout time.Duration
}

// NewHTTPClient creates a new HTTP inference client.
func NewHTTPClient(cfg *Config) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// Generate sends the prompt and returns the raw response text. Any
// transport or service-side error is returned wrapped; callers treat it
// as fatal to the run.
func (c *HTTPClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact inference service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read inference response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("inference service returned %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode inference response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("inference service error: %s", out.Error)
	}

	return out.Response, nil
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

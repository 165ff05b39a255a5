package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPLocalAdapter talks to a locally-hosted HTTP generation service (e.g.
// a sidecar running an open model), the adapter kind the teacher's worker
// package polls through its own http.Client with a bounded timeout.
type HTTPLocalAdapter struct {
	baseURL string
	name    string
	client  *http.Client
}

// NewHTTPLocalAdapter constructs an adapter against baseURL. name is the
// model name reported in ModelCallStat.
func NewHTTPLocalAdapter(baseURL, name string) *HTTPLocalAdapter {
	return &HTTPLocalAdapter{
		baseURL: baseURL,
		name:    name,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *HTTPLocalAdapter) Kind() Kind { return KindHTTPLocal }
func (a *HTTPLocalAdapter) Name() string { return a.name }

// IsAvailable pings the service's health endpoint with a short timeout.
func (a *HTTPLocalAdapter) IsAvailable(ctx context.Context) bool {
	if a.baseURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

type httpLocalRequest struct {
	Prompt string `json:"prompt"`
	TaskID string `json:"task_id"`
}

type httpLocalResponse struct {
	Code             string `json:"code"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

func (a *HTTPLocalAdapter) Generate(ctx context.Context, prompt, taskID string) (string, Stats, error) {
	start := time.Now()
	stats := Stats{Kind: a.Kind(), Name: a.name}

	body, err := json.Marshal(httpLocalRequest{Prompt: prompt, TaskID: taskID})
	if err != nil {
		stats.Elapsed = time.Since(start)
		return "", stats, fmt.Errorf("model: http-local: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		stats.Elapsed = time.Since(start)
		return "", stats, fmt.Errorf("model: http-local: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	stats.Elapsed = time.Since(start)
	if err != nil {
		return "", stats, fmt.Errorf("model: http-local: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", stats, fmt.Errorf("model: http-local: status %d: %s", resp.StatusCode, string(b))
	}

	var out httpLocalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", stats, fmt.Errorf("model: http-local: decode response: %w", err)
	}

	stats.PromptTokens = out.PromptTokens
	stats.CompletionTokens = out.CompletionTokens
	stats.OK = true
	return out.Code, stats, nil
}

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

// HostedAdapter talks to a hosted LLM API (e.g. an Anthropic-style
// messages endpoint), authenticated with an API key the way the teacher's
// worker.Config carries an AnthropicAPIKey.
type HostedAdapter struct {
	baseURL string
	apiKey  string
	name    string
	client  *http.Client
}

// NewHostedAdapter constructs an adapter against a hosted API. An empty
// apiKey makes the adapter permanently unavailable.
func NewHostedAdapter(baseURL, apiKey, name string) *HostedAdapter {
	return &HostedAdapter{
		baseURL: baseURL,
		apiKey:  apiKey,
		name:    name,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *HostedAdapter) Kind() Kind   { return KindHosted }
func (a *HostedAdapter) Name() string { return a.name }

// IsAvailable reports whether an API key is configured. A hosted backend's
// cheapest availability check is "do we have credentials", not a network
// round-trip on every poll.
func (a *HostedAdapter) IsAvailable(ctx context.Context) bool {
	return a.apiKey != "" && a.baseURL != ""
}

type hostedRequest struct {
	Model    string `json:"model"`
	Messages []hostedMessage `json:"messages"`
}

type hostedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hostedResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *HostedAdapter) Generate(ctx context.Context, prompt, taskID string) (string, Stats, error) {
	start := time.Now()
	stats := Stats{Kind: a.Kind(), Name: a.name}

	if !a.IsAvailable(ctx) {
		stats.Elapsed = time.Since(start)
		return "", stats, fmt.Errorf("model: hosted: not configured")
	}

	body, err := json.Marshal(hostedRequest{
		Model:    a.name,
		Messages: []hostedMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		stats.Elapsed = time.Since(start)
		return "", stats, fmt.Errorf("model: hosted: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		stats.Elapsed = time.Since(start)
		return "", stats, fmt.Errorf("model: hosted: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)

	resp, err := a.client.Do(req)
	stats.Elapsed = time.Since(start)
	if err != nil {
		return "", stats, fmt.Errorf("model: hosted: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", stats, fmt.Errorf("model: hosted: status %d: %s", resp.StatusCode, string(b))
	}

	var out hostedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", stats, fmt.Errorf("model: hosted: decode response: %w", err)
	}

	var code string
	if len(out.Content) > 0 {
		code = out.Content[0].Text
	}

	stats.PromptTokens = out.Usage.InputTokens
	stats.CompletionTokens = out.Usage.OutputTokens
	stats.OK = true
	return code, stats, nil
}

// Package controlclient is the HTTP client side of the Control API: the
// same "{ok: true, ...}" / "{ok: false, error}" envelope contract
// internal/controlapi serves, consumed from a separate process — the
// thin-transport boundary the Control API's narrow-interface design is
// built to support. Grounded on the teacher's worker.go client loop
// pattern (plain *http.Client, JSON decode, no client framework), scaled
// up from one polling endpoint to the full façade.
package controlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/devloopai/agentcore/internal/repository"
	"github.com/devloopai/agentcore/internal/reviewer"
	"github.com/devloopai/agentcore/internal/store"
	"github.com/devloopai/agentcore/internal/task"
)

// DefaultBaseURL is the Control API address a locally-run Supervisor
// listens on.
const DefaultBaseURL = "http://localhost:7400/api/v1"

// Client calls a running Supervisor's Control API over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a Client against baseURL (e.g. "http://host:7400/api/v1").
// An empty baseURL falls back to DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// envelope is the {ok, error} header every Control API response carries.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// APIError is returned when the Control API answers with {ok: false}.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("control api: %s (status %d)", e.Message, e.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("controlclient: encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("controlclient: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("controlclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("controlclient: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("controlclient: decode response: %w", err)
	}
	if !env.OK {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("controlclient: decode response fields: %w", err)
	}
	return nil
}

// Status is the decoded GET /status response.
type Status struct {
	TaskStats    store.TaskStats `json:"task_stats"`
	AgentState   struct {
		IsPaused bool `json:"is_paused"`
	} `json:"agent_state"`
	Queue struct {
		Size int `json:"size"`
	} `json:"queue"`
	Model struct {
		Active       string          `json:"active"`
		Availability map[string]bool `json:"availability"`
	} `json:"model"`
	Repositories struct {
		Count   int      `json:"count"`
		Aliases []string `json:"aliases"`
	} `json:"repositories"`
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Logs fetches GET /logs?limit=N.
func (c *Client) Logs(ctx context.Context, limit int) ([]store.Event, error) {
	var out struct {
		Events []store.Event `json:"events"`
	}
	path := "/logs"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(fmt.Sprint(limit))
	}
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out.Events, err
}

// CreateTask posts POST /task (no target repository).
func (c *Client) CreateTask(ctx context.Context, description string, priority int) (task.ID, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	err := c.do(ctx, http.MethodPost, "/task", map[string]any{
		"description": description,
		"priority":    priority,
	}, &out)
	if err != nil {
		return task.ID{}, err
	}
	return task.ParseID(out.TaskID)
}

// CreateTaskWithRepo posts POST /task/with-repo.
func (c *Client) CreateTaskWithRepo(ctx context.Context, description, targetRepo string, priority int) (task.ID, error) {
	var out struct {
		TaskID string `json:"task_id"`
	}
	err := c.do(ctx, http.MethodPost, "/task/with-repo", map[string]any{
		"description": description,
		"target_repo": targetRepo,
		"priority":    priority,
	}, &out)
	if err != nil {
		return task.ID{}, err
	}
	return task.ParseID(out.TaskID)
}

// Put implements taskfile.Queue, letting a task-file be loaded against a
// remote Supervisor through the same Loader the Supervisor runs
// in-process: enqueue a parsed entry via the Control API instead of a
// direct Queue.
func (c *Client) Put(ctx context.Context, t *task.Task) (bool, error) {
	var err error
	if t.TargetRepo != "" {
		_, err = c.CreateTaskWithRepo(ctx, t.Description, t.TargetRepo, t.Priority)
	} else {
		_, err = c.CreateTask(ctx, t.Description, t.Priority)
	}
	return err == nil, err
}

// Pause posts POST /pause {action}. action is "pause", "resume", or
// "toggle".
func (c *Client) Pause(ctx context.Context, action string) (bool, error) {
	var out struct {
		IsPaused bool `json:"is_paused"`
	}
	err := c.do(ctx, http.MethodPost, "/pause", map[string]any{"action": action}, &out)
	return out.IsPaused, err
}

// ListRepositories fetches GET /repositories.
func (c *Client) ListRepositories(ctx context.Context) ([]*repository.Binding, error) {
	var out struct {
		Repositories []*repository.Binding `json:"repositories"`
	}
	err := c.do(ctx, http.MethodGet, "/repositories", nil, &out)
	return out.Repositories, err
}

// ConnectRepoRequest is the POST /repositories/connect body.
type ConnectRepoRequest struct {
	Type          string // "remote" or "local"
	URL           string
	Path          string
	Alias         string
	Branch        string
	InitializeGit bool
}

// ConnectRepository posts POST /repositories/connect.
func (c *Client) ConnectRepository(ctx context.Context, req ConnectRepoRequest) (*repository.Binding, error) {
	var out struct {
		Repository *repository.Binding `json:"repository"`
	}
	err := c.do(ctx, http.MethodPost, "/repositories/connect", map[string]any{
		"type":            req.Type,
		"url":             req.URL,
		"path":            req.Path,
		"alias":           req.Alias,
		"branch":          req.Branch,
		"initialize_git":  req.InitializeGit,
	}, &out)
	return out.Repository, err
}

// DisconnectRepository posts POST /repositories/:alias/disconnect.
func (c *Client) DisconnectRepository(ctx context.Context, alias string, removeFiles bool) error {
	return c.do(ctx, http.MethodPost, "/repositories/"+url.PathEscape(alias)+"/disconnect", map[string]any{
		"remove_files": removeFiles,
	}, nil)
}

// PullRepository posts POST /repositories/:alias/pull.
func (c *Client) PullRepository(ctx context.Context, alias string) error {
	return c.do(ctx, http.MethodPost, "/repositories/"+url.PathEscape(alias)+"/pull", nil, nil)
}

// PushResult is the decoded POST /repositories/:alias/push response.
type PushResult struct {
	Commit     string `json:"commit"`
	Noop       bool   `json:"noop"`
	Remoteless bool   `json:"remoteless"`
}

// PushRepository posts POST /repositories/:alias/push.
func (c *Client) PushRepository(ctx context.Context, alias string) (PushResult, error) {
	var out PushResult
	err := c.do(ctx, http.MethodPost, "/repositories/"+url.PathEscape(alias)+"/push", nil, &out)
	return out, err
}

// ScanRepository posts POST /repositories/:alias/scan.
func (c *Client) ScanRepository(ctx context.Context, alias string) (repository.ScanResult, error) {
	var out repository.ScanResult
	err := c.do(ctx, http.MethodPost, "/repositories/"+url.PathEscape(alias)+"/scan", nil, &out)
	return out, err
}

// ReviewerStatus fetches GET /tireless-reviewer/status.
func (c *Client) ReviewerStatus(ctx context.Context) (reviewer.Stats, error) {
	var out struct {
		Stats reviewer.Stats `json:"stats"`
	}
	err := c.do(ctx, http.MethodGet, "/tireless-reviewer/status", nil, &out)
	return out.Stats, err
}

// ForceReview posts POST /tireless-reviewer/force/:task_id.
func (c *Client) ForceReview(ctx context.Context, taskID string) error {
	return c.do(ctx, http.MethodPost, "/tireless-reviewer/force/"+url.PathEscape(taskID), nil, nil)
}

// ReviewerResults fetches GET /tireless-reviewer/results/:task_id.
func (c *Client) ReviewerResults(ctx context.Context, taskID string) ([]store.ReviewFinding, error) {
	var out struct {
		Findings []store.ReviewFinding `json:"findings"`
	}
	err := c.do(ctx, http.MethodGet, "/tireless-reviewer/results/"+url.PathEscape(taskID), nil, &out)
	return out.Findings, err
}

package controlclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloopai/agentcore/internal/task"
)

func TestStatus_DecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"task_stats": map[string]any{"pending": 1, "running": 2, "completed": 3, "failed": 0},
			"queue":      map[string]any{"size": 4},
		})
	}))
	defer srv.Close()

	c := New(srv.URL)
	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.TaskStats.Pending)
	assert.Equal(t, 4, status.Queue.Size)
}

func TestDo_ReturnsAPIErrorOnFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "description is required"})
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.CreateTask(context.Background(), "", 0)
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "description is required")
}

func TestCreateTaskWithRepo_SendsTargetRepo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/task/with-repo", r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "infra", body["target_repo"])
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "task_id": task.NewID().String()})
	}))
	defer srv.Close()

	c := New(srv.URL)
	id, err := c.CreateTaskWithRepo(context.Background(), "fix it", "infra", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, id.String())
}

func TestPut_RoutesByTargetRepo(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "task_id": task.NewID().String()})
	}))
	defer srv.Close()

	c := New(srv.URL)
	ok, err := c.Put(context.Background(), task.NewTask("no repo", 0, 3, ""))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/task", gotPath)

	ok, err = c.Put(context.Background(), task.NewTask("with repo", 0, 3, "infra"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/task/with-repo", gotPath)
}

func TestPause_DecodesIsPaused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "is_paused": true})
	}))
	defer srv.Close()

	c := New(srv.URL)
	paused, err := c.Pause(context.Background(), "pause")
	require.NoError(t, err)
	assert.True(t, paused)
}

package controlapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devloopai/agentcore/internal/task"
)

// CreateTask handles POST /task {description, priority?}: enqueues one
// task against the default repository.
func (h *Handler) CreateTask(c echo.Context) error {
	if h.queue == nil {
		return unavailable(c, "queue")
	}

	var req taskRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errResponse(c, http.StatusBadRequest, err.Error())
	}

	priority := req.Priority
	if priority == 0 {
		priority = h.cfg.DefaultPriority
	}

	t := task.NewTask(req.Description, priority, h.cfg.DefaultMaxRetries, "")
	if _, err := h.queue.Put(c.Request().Context(), t); err != nil {
		return jsonError(c, err)
	}

	return ok(c, http.StatusCreated, map[string]any{"task_id": t.ID.String()})
}

// CreateTaskWithRepo handles POST /task/with-repo
// {description, target_repo, priority?}: enqueues one task targeting a
// specific repository alias.
func (h *Handler) CreateTaskWithRepo(c echo.Context) error {
	if h.queue == nil {
		return unavailable(c, "queue")
	}

	var req taskWithRepoRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errResponse(c, http.StatusBadRequest, err.Error())
	}

	priority := req.Priority
	if priority == 0 {
		priority = h.cfg.DefaultPriority
	}

	t := task.NewTask(req.Description, priority, h.cfg.DefaultMaxRetries, req.TargetRepo)
	if _, err := h.queue.Put(c.Request().Context(), t); err != nil {
		return jsonError(c, err)
	}

	return ok(c, http.StatusCreated, map[string]any{"task_id": t.ID.String()})
}

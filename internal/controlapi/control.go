package controlapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devloopai/agentcore/internal/model"
)

// Pause handles POST /pause {action: pause|resume|toggle}.
func (h *Handler) Pause(c echo.Context) error {
	if h.pool == nil {
		return unavailable(c, "executor pool")
	}

	var req pauseRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errResponse(c, http.StatusBadRequest, err.Error())
	}

	switch req.Action {
	case "pause":
		h.pool.Pause()
	case "resume":
		h.pool.Resume()
	case "toggle":
		if h.pool.IsPaused() {
			h.pool.Resume()
		} else {
			h.pool.Pause()
		}
	}

	return ok(c, http.StatusOK, map[string]any{"is_paused": h.pool.IsPaused()})
}

// RestartWorker handles POST /restart-worker {worker_id}.
func (h *Handler) RestartWorker(c echo.Context) error {
	if h.pool == nil {
		return unavailable(c, "executor pool")
	}

	var req restartWorkerRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errResponse(c, http.StatusBadRequest, err.Error())
	}

	if !h.pool.Restart(req.WorkerID) {
		return errResponse(c, http.StatusNotFound, "unknown worker_id")
	}
	return ok(c, http.StatusOK, map[string]any{"worker_id": req.WorkerID})
}

// Settings handles POST /settings {model_type?}: switches the active model
// adapter at runtime. No other setting can be changed here; other fields
// in the body are ignored and not reported back.
func (h *Handler) Settings(c echo.Context) error {
	var req settingsRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid request body")
	}

	if req.ModelType == "" {
		return ok(c, http.StatusOK, map[string]any{"changed": false})
	}

	if h.models == nil {
		return unavailable(c, "model registry")
	}

	if !h.models.Switch(c.Request().Context(), model.Kind(req.ModelType)) {
		return errResponse(c, http.StatusBadRequest, "requested model adapter is unavailable")
	}

	return ok(c, http.StatusOK, map[string]any{"changed": true, "active": h.models.Active()})
}

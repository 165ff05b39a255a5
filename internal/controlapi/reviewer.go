package controlapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/devloopai/agentcore/internal/task"
)

// ReviewerStatus handles GET /tireless-reviewer/status: aggregate
// counters the Tireless Reviewer tracks.
func (h *Handler) ReviewerStatus(c echo.Context) error {
	if h.reviewer == nil {
		return unavailable(c, "tireless reviewer")
	}
	return ok(c, http.StatusOK, map[string]any{"stats": h.reviewer.CurrentStats()})
}

// ForceReview handles POST /tireless-reviewer/force/:task_id: an
// on-demand deep review of a single task, bypassing cadence and the
// major-task grace period.
func (h *Handler) ForceReview(c echo.Context) error {
	if h.reviewer == nil {
		return unavailable(c, "tireless reviewer")
	}

	id, err := task.ParseID(c.Param("task_id"))
	if err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid task_id")
	}

	if err := h.reviewer.ForceReview(c.Request().Context(), id); err != nil {
		return jsonError(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"task_id": id.String()})
}

// ReviewerResults handles GET /tireless-reviewer/results/:task_id: every
// finding recorded for a task.
func (h *Handler) ReviewerResults(c echo.Context) error {
	if h.reviewer == nil {
		return unavailable(c, "tireless reviewer")
	}

	taskID := c.Param("task_id")
	findings, err := h.reviewer.Results(c.Request().Context(), taskID)
	if err != nil {
		return jsonError(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"findings": findings})
}

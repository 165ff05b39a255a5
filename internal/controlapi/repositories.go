package controlapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListRepositories handles GET /repositories: list bindings.
func (h *Handler) ListRepositories(c echo.Context) error {
	if h.repos == nil {
		return unavailable(c, "repository registry")
	}
	return ok(c, http.StatusOK, map[string]any{"repositories": h.repos.List()})
}

// ConnectRepository handles POST /repositories/connect
// {type,url|path,alias,branch?,initialize_git?}.
func (h *Handler) ConnectRepository(c echo.Context) error {
	if h.repos == nil {
		return unavailable(c, "repository registry")
	}

	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return errResponse(c, http.StatusBadRequest, "invalid request body")
	}
	if err := req.validate(); err != nil {
		return errResponse(c, http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()

	var binding any
	var err error
	switch req.Type {
	case "remote":
		binding, err = h.repos.ConnectRemote(ctx, req.URL, req.Alias, req.Branch)
	case "local":
		binding, err = h.repos.ConnectLocal(ctx, req.Path, req.Alias, req.InitializeGit)
	}
	if err != nil {
		return jsonError(c, err)
	}

	return ok(c, http.StatusCreated, map[string]any{"repository": binding})
}

// DisconnectRepository handles POST /repositories/:alias/disconnect. An
// optional {remove_files: bool} body controls whether a cloned working
// directory is deleted along with the binding.
func (h *Handler) DisconnectRepository(c echo.Context) error {
	if h.repos == nil {
		return unavailable(c, "repository registry")
	}

	var req struct {
		RemoveFiles bool `json:"remove_files"`
	}
	_ = c.Bind(&req) // an empty/absent body is a valid request

	alias := c.Param("alias")
	if err := h.repos.Disconnect(alias, req.RemoveFiles); err != nil {
		return jsonError(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"alias": alias})
}

// PullRepository handles POST /repositories/:alias/pull.
func (h *Handler) PullRepository(c echo.Context) error {
	if h.repos == nil {
		return unavailable(c, "repository registry")
	}

	alias := c.Param("alias")
	result := h.repos.Pull(c.Request().Context(), alias)
	if !result.OK {
		return errResponse(c, http.StatusBadRequest, result.Error)
	}
	return ok(c, http.StatusOK, map[string]any{"alias": alias})
}

// PushRepository handles POST /repositories/:alias/push: stages, commits
// (if dirty), and pushes the working directory, the same primitive the
// executor drives after each task — exposed here as an on-demand,
// task-independent operation.
func (h *Handler) PushRepository(c echo.Context) error {
	if h.repos == nil {
		return unavailable(c, "repository registry")
	}

	alias := c.Param("alias")
	result := h.repos.CommitAndPush(c.Request().Context(), alias, "")
	if !result.OK {
		return errResponse(c, http.StatusBadRequest, result.Error)
	}
	return ok(c, http.StatusOK, map[string]any{
		"alias":      alias,
		"commit":     result.Commit,
		"noop":       result.Noop,
		"remoteless": result.Remoteless,
	})
}

// ScanRepository handles POST /repositories/:alias/scan: the read-only
// TODO/FIXME/HACK/BUG and heuristic-issue walk.
func (h *Handler) ScanRepository(c echo.Context) error {
	if h.repos == nil {
		return unavailable(c, "repository registry")
	}

	alias := c.Param("alias")
	result, err := h.repos.Scan(alias)
	if err != nil {
		return jsonError(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"tasks": result.Tasks, "issues": result.Issues})
}

package controlapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

const defaultLogLimit = 100

// Status handles GET /status: the aggregated view of agent flags, worker
// states, queue stats, adapter availability, and a repository summary.
func (h *Handler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	fields := map[string]any{}

	if h.store != nil {
		stats, err := h.store.TaskStats(ctx)
		if err != nil {
			return jsonError(c, err)
		}
		fields["task_stats"] = stats
	}

	if h.pool != nil {
		fields["agent_state"] = map[string]any{"is_paused": h.pool.IsPaused()}
		fields["workers"] = h.pool.Status()
	}

	if h.queue != nil {
		fields["queue"] = map[string]any{"size": h.queue.Size()}
	}

	if h.models != nil {
		fields["model"] = map[string]any{
			"active":       h.models.Active(),
			"availability": h.models.Availability(ctx),
		}
	}

	if h.repos != nil {
		bindings := h.repos.List()
		aliases := make([]string, 0, len(bindings))
		for _, b := range bindings {
			aliases = append(aliases, b.Alias)
		}
		fields["repositories"] = map[string]any{"count": len(bindings), "aliases": aliases}
	}

	return ok(c, http.StatusOK, fields)
}

// Logs handles GET /logs?limit=N: the most recent N events.
func (h *Handler) Logs(c echo.Context) error {
	if h.store == nil {
		return unavailable(c, "event store")
	}

	limit := parseLimit(c, defaultLogLimit)
	events, err := h.store.RecentEvents(c.Request().Context(), limit)
	if err != nil {
		return jsonError(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"events": events})
}

// LogsStream handles GET /logs/stream: new events, polled at
// cfg.LogPollInterval and pushed as Server-Sent Events until the client
// disconnects.
func (h *Handler) LogsStream(c echo.Context) error {
	if h.store == nil {
		return unavailable(c, "event store")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := c.Request().Context()
	ticker := time.NewTicker(h.cfg.LogPollInterval)
	defer ticker.Stop()

	var lastID int64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			events, err := h.store.RecentEvents(ctx, defaultLogLimit)
			if err != nil {
				continue
			}
			// RecentEvents returns newest first; emit unseen ones oldest first.
			var fresh []any
			for i := len(events) - 1; i >= 0; i-- {
				if events[i].ID > lastID {
					fresh = append(fresh, events[i])
				}
			}
			if len(fresh) == 0 {
				continue
			}
			lastID = events[0].ID
			for _, e := range fresh {
				if err := writeSSE(w, "log", e); err != nil {
					return nil
				}
			}
		}
	}
}

func writeSSE(w *echo.Response, event string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// GitCommits handles GET /git/commits?limit=N: recent commits across the
// default repo.
func (h *Handler) GitCommits(c echo.Context) error {
	if h.store == nil {
		return unavailable(c, "event store")
	}

	limit := parseLimit(c, defaultLogLimit)
	commits, err := h.store.RecentCommits(c.Request().Context(), limit)
	if err != nil {
		return jsonError(c, err)
	}
	return ok(c, http.StatusOK, map[string]any{"commits": commits})
}

func parseLimit(c echo.Context, def int) int {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

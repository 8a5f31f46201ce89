package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pessini/superpod-blog/internal/domain"
)

// CreateSession creates an empty session.
// POST /sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req domain.CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	session, err := h.service.CreateSession(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, session)
}

// ListSessions lists the sessions of a user.
// GET /sessions?user_id=...&type=agent
func (h *Handler) ListSessions(c echo.Context) error {
	sessionType := c.QueryParam("type")
	if sessionType == "" {
		sessionType = c.QueryParam("session_type")
	}
	sessions, err := h.service.ListSessions(c.Request().Context(), c.QueryParam("user_id"), domain.SessionType(sessionType))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}

// GetSession returns a session with its messages and runs.
// GET /sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	detail, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, detail)
}

// DeleteSession removes a session and everything recorded under it.
// DELETE /sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSessionMessages handles GET /sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	limit := queryInt(c, "limit", 50)
	messages, err := h.service.GetMessages(c.Request().Context(), c.Param("session_id"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"messages": messages})
}

// GetRun handles GET /runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	run, err := h.service.GetRun(c.Request().Context(), c.Param("run_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunEvents handles GET /runs/:run_id/events
func (h *Handler) GetRunEvents(c echo.Context) error {
	limit := queryInt(c, "limit", 200)
	events, err := h.service.GetRunEvents(c.Request().Context(), c.Param("run_id"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events})
}

func queryInt(c echo.Context, name string, def int) int {
	if v := c.QueryParam(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

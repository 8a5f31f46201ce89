// Package api provides the AgentOS HTTP handlers.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/repository"
	"github.com/pessini/superpod-blog/internal/service"
	"github.com/pessini/superpod-blog/internal/workflow"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	logger  *zap.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		service: service,
		logger:  logger.With(zap.String("component", "api")),
	}
}

// RegisterRoutes registers the AgentOS routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/config", h.GetConfig)

	// Entities
	e.GET("/agents", h.ListEntities(domain.EntityAgent))
	e.GET("/agents/:id", h.GetEntity(domain.EntityAgent))
	e.POST("/agents/:id/runs", h.CreateRun(domain.EntityAgent))
	e.GET("/teams", h.ListEntities(domain.EntityTeam))
	e.GET("/teams/:id", h.GetEntity(domain.EntityTeam))
	e.POST("/teams/:id/runs", h.CreateRun(domain.EntityTeam))
	e.GET("/workflows", h.ListEntities(domain.EntityWorkflow))
	e.GET("/workflows/:id", h.GetEntity(domain.EntityWorkflow))
	e.POST("/workflows/:id/runs", h.CreateRun(domain.EntityWorkflow))

	// Sessions and runs
	e.POST("/sessions", h.CreateSession)
	e.GET("/sessions", h.ListSessions)
	e.GET("/sessions/:session_id", h.GetSession)
	e.DELETE("/sessions/:session_id", h.DeleteSession)
	e.GET("/sessions/:session_id/messages", h.GetSessionMessages)
	e.GET("/runs/:run_id", h.GetRun)
	e.GET("/runs/:run_id/events", h.GetRunEvents)

	// Knowledge and memories
	e.GET("/knowledge/content", h.ListKnowledge)
	e.POST("/knowledge/content", h.AddKnowledge)
	e.GET("/memories", h.ListMemories)
	e.DELETE("/memories", h.DeleteMemories)
	e.DELETE("/memories/:memory_id", h.DeleteMemory)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// GetConfig describes the served entities.
// GET /config
func (h *Handler) GetConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Config())
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, domain.ErrorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrEntityNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, workflow.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrKnowledgeAbsent):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return errorJSON(c, status, err.Error())
}

package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pessini/superpod-blog/internal/domain"
)

// ListEntities lists the agents, teams or workflows.
// GET /agents, /teams, /workflows
func (h *Handler) ListEntities(kind domain.EntityType) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, h.service.ListEntities(kind))
	}
}

// GetEntity returns one entity.
// GET /agents/:id, /teams/:id, /workflows/:id
func (h *Handler) GetEntity(kind domain.EntityType) echo.HandlerFunc {
	return func(c echo.Context) error {
		entity, err := h.service.GetEntity(kind, c.Param("id"))
		if err != nil {
			return h.fail(c, err)
		}
		return c.JSON(http.StatusOK, entity)
	}
}

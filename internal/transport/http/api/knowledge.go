package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pessini/superpod-blog/internal/service"
)

// ListKnowledge handles GET /knowledge/content
func (h *Handler) ListKnowledge(c echo.Context) error {
	contents, err := h.service.ListKnowledge(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, contents)
}

// AddKnowledge ingests a document given by url or inline text.
// POST /knowledge/content
func (h *Handler) AddKnowledge(c echo.Context) error {
	var req service.AddKnowledgeRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	content, err := h.service.AddKnowledge(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, content)
}

// ListMemories handles GET /memories?user_id=...
func (h *Handler) ListMemories(c echo.Context) error {
	memories, err := h.service.ListMemories(c.Request().Context(), c.QueryParam("user_id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, memories)
}

// DeleteMemory handles DELETE /memories/:memory_id
func (h *Handler) DeleteMemory(c echo.Context) error {
	if err := h.service.DeleteMemory(c.Request().Context(), c.Param("memory_id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type deleteMemoriesRequest struct {
	MemoryIDs []string `json:"memory_ids"`
}

// DeleteMemories removes several memories at once.
// DELETE /memories
func (h *Handler) DeleteMemories(c echo.Context) error {
	var req deleteMemoriesRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}
	if len(req.MemoryIDs) == 0 {
		return errorJSON(c, http.StatusBadRequest, "memory_ids is required")
	}
	for _, id := range req.MemoryIDs {
		if err := h.service.DeleteMemory(c.Request().Context(), id); err != nil {
			return h.fail(c, err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
)

// CreateRun runs an agent, team or workflow. Requests may be form encoded or
// JSON. With stream=true the run is written as server-sent events.
// POST /agents/:id/runs, /teams/:id/runs, /workflows/:id/runs
func (h *Handler) CreateRun(kind domain.EntityType) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req domain.RunRequest
		if err := c.Bind(&req); err != nil {
			return errorJSON(c, http.StatusBadRequest, "invalid request body")
		}
		if strings.TrimSpace(req.Message) == "" {
			return errorJSON(c, http.StatusBadRequest, "message is required")
		}
		id := c.Param("id")

		if !req.Stream {
			resp, err := h.service.Run(c.Request().Context(), kind, id, req, nil)
			if err != nil {
				return h.fail(c, err)
			}
			return c.JSON(http.StatusOK, resp)
		}

		sse := &sseWriter{c: c, logger: h.logger}
		_, err := h.service.Run(c.Request().Context(), kind, id, req, sse.write)
		if err != nil && !sse.started {
			return h.fail(c, err)
		}
		// a failed run has already been reported through a RunError or
		// WorkflowError frame
		return nil
	}
}

// sseWriter writes stream events as "event: X\ndata: {json}\n\n" frames.
// Headers are sent with the first frame so that a run rejected before it
// starts can still answer with a JSON error.
type sseWriter struct {
	c       echo.Context
	logger  *zap.Logger
	started bool
	broken  bool
}

func (w *sseWriter) write(ev domain.StreamEvent) {
	if w.broken {
		return
	}
	res := w.c.Response()
	if !w.started {
		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.WriteHeader(http.StatusOK)
		w.started = true
	}
	data, err := json.Marshal(ev)
	if err != nil {
		w.logger.Error("failed to encode stream event", zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Event, data); err != nil {
		w.logger.Debug("stream client went away", zap.Error(err))
		w.broken = true
		return
	}
	res.Flush()
}

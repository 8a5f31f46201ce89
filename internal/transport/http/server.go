// Package http provides the AgentOS HTTP server.
package http

import (
	"errors"
	nethttp "net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/domain"
	"github.com/pessini/superpod-blog/internal/metrics"
	"github.com/pessini/superpod-blog/internal/service"
	"github.com/pessini/superpod-blog/internal/transport/http/api"
)

// ServiceName is the otel service name of HTTP spans.
const ServiceName = "agentos"

// NewServer creates and configures the AgentOS HTTP server. mcpHandler, when
// non-nil, is mounted under /mcp.
func NewServer(svc *service.Service, mcpHandler nethttp.Handler, version string, logger *zap.Logger) *echo.Echo {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = jsonErrorHandler(logger)

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			logger.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(otelecho.Middleware(ServiceName, otelecho.WithSkipper(func(c echo.Context) bool {
		return c.Path() == "/health" || c.Path() == "/metrics"
	})))

	// Handlers
	handler := api.NewHandler(svc, logger)
	handler.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	if mcpHandler != nil {
		e.Any("/mcp", echo.WrapHandler(mcpHandler))
		e.Any("/mcp/*", echo.WrapHandler(mcpHandler))
	}
	handler.RegisterDocs(e, version)

	return e
}

// jsonErrorHandler renders router and middleware errors as {"error": "..."}.
func jsonErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := nethttp.StatusInternalServerError
		msg := nethttp.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = nethttp.StatusText(status)
			}
		} else {
			logger.Error("unhandled error", zap.String("path", c.Path()), zap.Error(err))
		}
		if c.Request().Method == nethttp.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, domain.ErrorResponse{Error: msg})
		}
		if err != nil {
			logger.Debug("failed to write error response", zap.Error(err))
		}
	}
}

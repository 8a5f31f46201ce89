// Command chat runs the chat frontend gateway: a WebSocket endpoint offering
// local Ollama models and AgentOS entities as chat profiles.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/adapter/agentos"
	"github.com/pessini/superpod-blog/internal/adapter/ollama"
	"github.com/pessini/superpod-blog/internal/chat"
	"github.com/pessini/superpod-blog/internal/config"
	"github.com/pessini/superpod-blog/internal/hub"
	"github.com/pessini/superpod-blog/internal/logging"
	"github.com/pessini/superpod-blog/internal/tracing"
	"github.com/pessini/superpod-blog/internal/ws"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "chat",
		Short:         "Chat gateway for local models and AgentOS entities",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), v)
		},
	}
	cmd.Flags().Int("port", 0, "WebSocket port (default 8090)")
	cmd.Flags().String("agentos-url", "", "AgentOS base URL")
	cmd.Flags().String("ollama-url", "", "Ollama base URL")
	cmd.Flags().Bool("show-all-installed", false, "offer every installed Ollama model")
	_ = v.BindPFlag("chat_port", cmd.Flags().Lookup("port"))
	_ = v.BindPFlag("agentos_url", cmd.Flags().Lookup("agentos-url"))
	_ = v.BindPFlag("ollama_url", cmd.Flags().Lookup("ollama-url"))
	_ = v.BindPFlag("show_all_installed_models", cmd.Flags().Lookup("show-all-installed"))
	return cmd
}

func run(ctx context.Context, v *viper.Viper) error {
	cfg, err := config.LoadChat(v)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer := tracing.NewBootstrapper(logger, nil, nil)
	tracer.Init(ctx, false)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracing.ExportTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	entities := agentos.NewClient(cfg.AgentOSURL, cfg.ClientTimeout(), logger, agentos.WithCacheTTL(cfg.EntityCacheTTL()))
	models := ollama.NewClient(cfg.OllamaURL, 0)
	gateway := chat.NewGateway(entities, models, cfg.ShowAllInstalled, logger)

	if !entities.HealthCheck(ctx) {
		logger.Warn("AgentOS is not reachable; only local models are offered until it is", zap.String("url", cfg.AgentOSURL))
	}

	connectionHub := hub.NewHub(logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan struct{})
	go func() {
		connectionHub.Run(hubCtx)
		close(hubDone)
	}()

	wsServer := ws.NewServer(cfg, connectionHub, gateway, logger)
	go wsServer.RunSweeper(hubCtx, time.Minute)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(otelecho.Middleware("chat", otelecho.WithSkipper(func(c echo.Context) bool {
		return c.Path() == "/health"
	})))
	wsServer.RegisterRoutes(e)

	addr := fmt.Sprintf(":%d", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("chat gateway listening",
			zap.String("addr", addr),
			zap.String("agentos_url", cfg.AgentOSURL),
			zap.String("ollama_url", cfg.OllamaURL))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stopHub()
		<-hubDone
		return fmt.Errorf("failed to start chat gateway: %w", err)
	}

	logger.Info("shutting down chat gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown server gracefully", zap.Error(err))
	}
	stopHub()
	<-hubDone
	logger.Info("chat gateway stopped")
	return nil
}

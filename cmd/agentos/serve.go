package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pessini/superpod-blog/internal/tracing"
	httpserver "github.com/pessini/superpod-blog/internal/transport/http"
	"github.com/pessini/superpod-blog/internal/transport/mcp"
)

// staleRunInterval is how often abandoned runs are swept.
const staleRunInterval = time.Minute

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the AgentOS HTTP API, MCP endpoint and metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd, v)
		},
	}
	cmd.Flags().Int("port", 0, "HTTP port (default 7777)")
	_ = v.BindPFlag("http_port", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(cmd *cobra.Command, v *viper.Viper) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, v)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	tracer := tracing.NewBootstrapper(logger, nil, nil)
	tracer.Init(ctx, false)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), tracing.ExportTimeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}()

	go a.service.RunStaleRunMonitor(ctx, staleRunInterval)

	mcpServer := mcp.NewServer(a.service, version)
	e := httpserver.NewServer(a.service, mcpServer.Handler(), version, logger)

	addr := fmt.Sprintf(":%d", a.cfg.HTTPPort)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("AgentOS listening", zap.String("addr", addr), zap.String("os_id", a.cfg.OSID))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}

	logger.Info("shutting down AgentOS")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to shutdown server gracefully", zap.Error(err))
	}
	logger.Info("AgentOS stopped")
	return nil
}

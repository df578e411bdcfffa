package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"dsacoach/internal/app/tutor"
	"dsacoach/internal/infra/httpapi"
	"dsacoach/internal/infra/openai"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tutor and evaluation HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides HTTP_ADDR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flushTraces, err := startTracing(ctx)
	if err != nil {
		return err
	}
	defer flushTraces()

	metrics := newMetrics()

	sb, err := newSandbox(ctx, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sb.Close(); cerr != nil {
			logger.Warn("Failed to close sandbox", "error", cerr)
		}
	}()

	providerCfg, err := openai.ConfigFromEnv()
	if err != nil {
		return err
	}
	provider, err := openai.NewClient(providerCfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	tutorSvc := tutor.NewService(provider, sb.harness, logger)

	serverCfg := httpapi.ServerConfig{
		Addr:      cfg.HTTPAddr,
		JWTSecret: cfg.JWTSecret,
		Gatherer:  prometheus.DefaultGatherer,
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		serverCfg.Addr = addr
	}
	if serverCfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; the API is unauthenticated")
	}

	server := httpapi.NewServer(serverCfg, httpapi.NewHandler(tutorSvc, sb.harness, logger), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server exited")
	return nil
}

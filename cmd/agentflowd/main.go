// Package main is the entry point for the agentflow API server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/agentflow"
	"github.com/hupe1980/agentflow/config"
	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/metrics"
	"github.com/hupe1980/agentflow/server"
)

func main() {
	configPath := flag.String("config", "", "path to an optional YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.NewSlogLogger(logging.LogLevelError, "json", false).Error("config.load.failed", "error", err.Error())
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, cfg.Server.Debug).
		WithComponent("agentflowd")

	if err := run(cfg, logger); err != nil {
		logger.Error("server.failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.FlowLogger) error {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	recorder := metrics.NewPrometheusRecorder(func(o *metrics.Options) { o.RuntimeCollectors = true })

	app, err := agentflow.New(cfg, func(o *agentflow.Options) {
		o.Logger = logger
		o.Metrics = recorder
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("agent.close.failed", "error", err.Error())
		}
	}()

	api := server.New(app, func(o *server.Options) {
		o.Logger = logger.WithComponent("http")
		o.Metrics = recorder
		o.MetricsHandler = recorder.Handler()
		o.MaxUploadBytes = cfg.Server.MaxUploadBytes
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "addr", srv.Addr, "provider", cfg.LLM.Provider, "session_backend", cfg.Session.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server.shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server.stopped")
	return nil
}

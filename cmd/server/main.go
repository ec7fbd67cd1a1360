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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/docrecon/docrecon/config"
	"github.com/docrecon/docrecon/internal/app"
	httpDelivery "github.com/docrecon/docrecon/internal/delivery/http"
	"github.com/docrecon/docrecon/internal/infrastructure/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docrecon: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Server.Environment == "development",
	})
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting docrecon backend",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("cache_type", cfg.Cache.Type),
		zap.String("refresh_mode", cfg.Refresh.Mode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("error closing components", zap.Error(err))
		}
	}()

	if components.Similarity == nil {
		logger.Warn("similarity service not configured, vector tier disabled")
	}

	var refresher httpDelivery.Refresher
	if components.Similarity != nil {
		refresher = components.Similarity
	}
	handler := httpDelivery.NewHandler(components.Service, refresher, logger)
	for name, check := range components.HealthChecks() {
		handler.AddHealthCheck(name, check)
	}
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

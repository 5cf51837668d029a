package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"customers/internal/customer"
	"customers/internal/customer/seed"
	"customers/internal/platform/config"
	"customers/internal/platform/httpserver"
	"customers/internal/platform/logger"
	httptransport "customers/internal/transport/http"
)

func newServeCmd(load func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cfg.Log)

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	if cfg.Seed.OnStart && cfg.Seed.Count > 0 {
		if _, err := seed.New(a.service, seed.WithLogger(log)).Seed(ctx, cfg.Seed.Count); err != nil {
			return fmt.Errorf("seed on start: %w", err)
		}
	}

	router := httptransport.NewRouter(httptransport.Options{
		Logger:         log,
		Metrics:        a.httpMetrics,
		Gatherer:       a.registry,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   a.healthChecks,

		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}, customer.NewHandler(a.service, log))

	srv := httpserver.New(cfg.Server, otelhttp.NewHandler(router, "customers"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting customers API", "addr", cfg.Server.Addr, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

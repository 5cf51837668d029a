package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"customers/internal/customer"
	"customers/internal/customer/events"
	customerMetrics "customers/internal/customer/metrics"
	"customers/internal/customer/service"
	customerStore "customers/internal/customer/store/customer"
	"customers/internal/platform/config"
	"customers/internal/platform/database"
	"customers/internal/platform/kafka"
	platformMetrics "customers/internal/platform/metrics"
	redisclient "customers/internal/platform/redis"
	httptransport "customers/internal/transport/http"
	"customers/pkg/platform/tx"
)

// app holds the long-lived dependencies shared by the serve and seed commands.
type app struct {
	service      *customer.Service
	registry     *prometheus.Registry
	httpMetrics  *platformMetrics.Metrics
	healthChecks []httptransport.HealthCheck
	transactor   service.Transactor
	closers      []func() error
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.httpMetrics = platformMetrics.New(a.registry)

	backend, err := a.openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		a.healthChecks = append(a.healthChecks, httptransport.HealthCheck{Name: "redis", Check: rc.Health})
		backend = customerStore.NewCached(backend, rc.Client,
			customerStore.WithCacheTTL(cfg.Redis.CacheTTL),
			customerStore.WithKeyPrefix(cfg.Redis.KeyPrefix),
			customerStore.WithCacheLogger(logger),
		)
		logger.InfoContext(ctx, "customer cache enabled", "ttl", cfg.Redis.CacheTTL.String())
	}

	publisher, err := a.openPublisher(ctx, cfg.Kafka, logger)
	if err != nil {
		return nil, err
	}

	a.service, err = customer.NewService(backend,
		service.WithLogger(logger),
		service.WithMetrics(customerMetrics.New(a.registry)),
		service.WithPublisher(publisher),
		service.WithTransactor(a.transactor),
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (customerStore.Backend, error) {
	opts := database.Options{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	switch cfg.Driver {
	case config.StoreMemory:
		logger.InfoContext(ctx, "using in-memory customer store")
		return customerStore.NewInMemory(), nil
	case config.StorePostgres:
		db, err := database.Open(ctx, database.DriverPostgres, cfg.DSN, opts)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.healthChecks = append(a.healthChecks, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
		store := customerStore.NewPostgres(db, cfg.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.transactor = transactorFor(db)
		logger.InfoContext(ctx, "using postgres customer store", "table", cfg.Table)
		return store, nil
	case config.StoreSQLite:
		db, err := database.Open(ctx, database.DriverSQLite, cfg.DSN, opts)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.healthChecks = append(a.healthChecks, httptransport.HealthCheck{Name: "sqlite", Check: db.PingContext})
		store := customerStore.NewSQLite(db, cfg.Table)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.transactor = transactorFor(db)
		logger.InfoContext(ctx, "using sqlite customer store", "path", cfg.DSN, "table", cfg.Table)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func transactorFor(db *sql.DB) service.Transactor {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return tx.Run(ctx, db, fn)
	}
}

func (a *app) openPublisher(ctx context.Context, cfg config.KafkaConfig, logger *slog.Logger) (service.EventPublisher, error) {
	kc, err := kafka.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if kc == nil {
		return events.NewLogPublisher(logger), nil
	}
	a.closers = append(a.closers, func() error {
		kc.Close()
		return nil
	})
	a.healthChecks = append(a.healthChecks, httptransport.HealthCheck{Name: "kafka", Check: kc.Health})
	if err := kc.EnsureTopic(ctx, cfg.Partitions, cfg.ReplicationFactor); err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "publishing customer events to kafka", "topic", kc.Topic())
	return events.NewKafkaPublisher(kc, kc.Topic()), nil
}

// Close releases every opened resource in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

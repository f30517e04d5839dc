// Package app builds and owns the long-lived services shared by the CLI
// commands: the record store, search service, performance reporter, run event
// hub and notification publisher.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/employee-directory/internal/clock/system"
	"github.com/JakeFAU/employee-directory/internal/config"
	"github.com/JakeFAU/employee-directory/internal/directory"
	"github.com/JakeFAU/employee-directory/internal/id/uuid"
	"github.com/JakeFAU/employee-directory/internal/logging"
	"github.com/JakeFAU/employee-directory/internal/perf"
	"github.com/JakeFAU/employee-directory/internal/progress"
	"github.com/JakeFAU/employee-directory/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/employee-directory/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/employee-directory/internal/publisher/pubsub"
	"github.com/JakeFAU/employee-directory/internal/search"
	memorystore "github.com/JakeFAU/employee-directory/internal/storage/memory"
	"github.com/JakeFAU/employee-directory/internal/storage/postgres"
)

// Options override process-wide defaults, mainly for tests.
type Options struct {
	// Registerer receives the run metrics collectors; defaults to
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
	// Store replaces the store selected by db.driver.
	Store directory.RecordStore
	// Publisher replaces the publisher selected by the pubsub settings.
	Publisher directory.Publisher
}

// App holds the shared services. It is built once per process and closed on
// shutdown.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Store    directory.RecordStore
	Search   *search.Service
	Reporter *perf.Reporter
	Hub      *progress.Hub

	closers []func() error
}

// New wires every service from cfg. It fails fast when a required dependency
// cannot be initialized and releases whatever it already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger}

	store := opts.Store
	if store == nil {
		var err error
		store, err = openStore(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
	}
	a.Store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})

	publisher := opts.Publisher
	if publisher == nil {
		var err error
		publisher, err = a.openPublisher(ctx, cfg.PubSub)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init run metrics: %w", err)
	}
	pubSink, err := sinks.NewPublisherSink(publisher, cfg.PubSub.TopicName, logger.Named("notify"))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init run notifications: %w", err)
	}
	a.Hub = progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("runs")),
		promSink,
		pubSink,
	)

	a.Search = search.NewService(store, logger.Named("search"))
	delay := cfg.Perf.Delay
	if delay == 0 {
		// An explicit zero in config turns pacing off.
		delay = -1
	}
	a.Reporter, err = perf.NewReporter(perf.Config{
		Delay:      delay,
		MaxQueries: cfg.Perf.MaxQueries,
		RunTimeout: cfg.Perf.RunTimeout,
	}, perf.Deps{
		Searcher: a.Search,
		Clock:    system.New(),
		IDs:      uuid.New(),
		Emitter:  a.Hub,
		Logger:   logger.Named("perf"),
	})
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init reporter: %w", err)
	}

	logger.Info("application services initialized",
		zap.String("db_driver", cfg.DB.Driver),
		zap.Bool("pubsub_enabled", cfg.PubSub.TopicName != "" && opts.Publisher == nil),
	)
	return a, nil
}

func openStore(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (directory.RecordStore, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Info("using in-memory employee store with seed data")
		return memorystore.NewEmployeeStore(memorystore.DefaultSeed()), nil
	case config.DriverPostgres:
		store, err := postgres.NewEmployeeStore(ctx, postgres.EmployeeStoreConfig{
			DSN:             cfg.DSN,
			Table:           cfg.Table,
			MaxConns:        cfg.MaxConns,
			MinConns:        cfg.MinConns,
			MaxConnLifetime: cfg.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Info("connected to postgres", zap.String("table", cfg.Table))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
}

func (a *App) openPublisher(ctx context.Context, cfg config.PubSubConfig) (directory.Publisher, error) {
	if cfg.TopicName == "" {
		a.Logger.Info("pubsub topic not set; run summaries stay in memory")
		return memorypublisher.New(), nil
	}
	pub, err := pubsubpublisher.New(ctx, cfg.ProjectID, cfg.TopicName)
	if err != nil {
		return nil, fmt.Errorf("open pubsub publisher: %w", err)
	}
	a.closers = append(a.closers, pub.Close)
	a.Logger.Info("publishing run summaries to pubsub", zap.String("topic", cfg.TopicName))
	return pub, nil
}

// Close drains the run event hub, then releases the publisher and store.
// It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Hub != nil {
		if err := a.Hub.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

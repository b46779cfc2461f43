// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/config"
	"github.com/openpatata/scrapers/internal/convert"
	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/fetch"
	"github.com/openpatata/scrapers/internal/logging"
	"github.com/openpatata/scrapers/internal/metrics"
	"github.com/openpatata/scrapers/internal/mirror"
	"github.com/openpatata/scrapers/internal/record"
	"github.com/openpatata/scrapers/internal/record/memory"
	"github.com/openpatata/scrapers/internal/record/postgres"
)

// App holds the shared, long-lived services: the logger, the record
// store, the crawler and the mirror. It is initialized once at startup
// and handed to the subcommands.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	store      record.Store
	crawler    *crawler.Crawler
	mirror     *mirror.Mirror
	metricsSrv *http.Server
	closeStore func()
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger instance.
func (a *App) Logger() *zap.Logger { return a.logger }

// Store exposes the configured record store.
func (a *App) Store() record.Store { return a.store }

// Crawler returns the shared crawler used by scrape tasks.
func (a *App) Crawler() *crawler.Crawler { return a.crawler }

// Mirror returns the store-to-data-directory sync engine.
func (a *App) Mirror() *mirror.Mirror { return a.mirror }

// New creates and initializes an App from configuration. It is the
// central point for service wiring and fails fast when any critical
// service cannot be initialized.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	switch cfg.Store.Backend {
	case "memory":
		a.store = memory.New()
		a.closeStore = func() {}
	case "postgres":
		logger.Info("connecting to postgres", zap.String("table", cfg.Store.Table))
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Store.DSN,
			Table:           cfg.Store.Table,
			MaxConns:        cfg.Store.MaxConns,
			MinConns:        cfg.Store.MinConns,
			MaxConnLifetime: cfg.Store.ConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.store = pg
		a.closeStore = pg.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		Timeout:        cfg.Crawler.Timeout(),
		MaxConcurrency: cfg.Crawler.Concurrency,
		RespectRobots:  cfg.Crawler.RespectRobots,
		RatePerHost:    cfg.Crawler.RatePerHost,
		Burst:          cfg.Crawler.Burst,
	}, logger.Named("fetch"))
	decoder := convert.New(logger.Named("convert"))
	a.crawler = crawler.New(fetcher, decoder, cfg.Crawler.Concurrency, logger.Named("crawler"))
	a.mirror = mirror.New(cfg.Mirror.DataDir, a.store, logger.Named("mirror"))

	if addr := cfg.Metrics.Addr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.metricsSrv = &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics server started", zap.String("addr", addr))
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	return a, nil
}

// Close gracefully shuts down all services held by the App.
func (a *App) Close() {
	if a.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown error", zap.Error(err))
		}
	}
	if a.closeStore != nil {
		a.closeStore()
	}
	// Flushing the logger buffer is best effort; stderr may be gone.
	_ = a.logger.Sync()
}

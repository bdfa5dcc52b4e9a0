package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/garnizeh/folio/api"
	dbfs "github.com/garnizeh/folio/db"
	"github.com/garnizeh/folio/internal/cache"
	"github.com/garnizeh/folio/internal/config"
	"github.com/garnizeh/folio/internal/db"
	"github.com/garnizeh/folio/internal/fixtures"
	"github.com/garnizeh/folio/internal/jobs"
	"github.com/garnizeh/folio/internal/metrics"
	"github.com/garnizeh/folio/internal/notify"
	"github.com/garnizeh/folio/internal/portfolio"
	"github.com/garnizeh/folio/internal/repository/memory"
	"github.com/garnizeh/folio/internal/repository/sqlite"
	"github.com/garnizeh/folio/pkg/repository"
)

// memoryDSN backs submissions and jobs when the data driver is "memory".
const memoryDSN = "file:folio?mode=memory&cache=shared"

type app struct {
	deps     api.Deps
	pool     *jobs.WorkerPool
	registry *notify.Registry
	closers  []func() error
	logger   *slog.Logger
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", slog.Any("err", err))
		}
	}
}

func loadDataset(ctx context.Context, path string) (*fixtures.Dataset, error) {
	var (
		raw []byte
		err error
	)
	if path != "" {
		raw, err = os.ReadFile(path)
	} else {
		raw, err = dbfs.PortfolioSeed()
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return fixtures.Load(ctx, raw)
}

// changeFeed returns the source the registry listens on and the publisher
// writes are announced through.
func changeFeed(ctx context.Context, cfg config.NotifyConfig, a *app) (notify.Source, notify.Publisher, error) {
	switch cfg.Driver {
	case "postgres":
		pub, err := notify.OpenPostgresPublisher(ctx, cfg.PostgresDSN, cfg.ChannelPrefix)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pub.Close)
		return notify.NewPostgresSource(cfg.PostgresDSN, cfg.ChannelPrefix, cfg.Schema), pub, nil
	case "redis":
		r, err := notify.ConnectRedis(notify.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.ChannelPrefix,
			Schema:   cfg.Schema,
		})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, r.Close)
		return r, r, nil
	default:
		hub := notify.NewHub()
		return hub, hub, nil
	}
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}
	fail := func(err error) (*app, error) {
		a.Close()
		return nil, err
	}

	m := metrics.New()

	dsn := cfg.DatabasePath
	if cfg.Data.Driver == "memory" {
		dsn = memoryDSN
	}
	database, err := db.New(ctx, dsn, logger)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, database.Close)
	if cfg.Data.Driver == "memory" {
		// shared-cache memory databases lock per table across connections
		database.GetConn().SetMaxOpenConns(1)
	}
	if err := db.Migrate(ctx, database, dbfs.Migrations); err != nil {
		return fail(fmt.Errorf("migrate: %w", err))
	}

	ds, err := loadDataset(ctx, cfg.Data.FixturePath)
	if err != nil {
		return fail(err)
	}

	src, pub, err := changeFeed(ctx, cfg.Notify, a)
	if err != nil {
		return fail(fmt.Errorf("change feed: %w", err))
	}
	a.registry = notify.NewRegistry(src, m)
	a.closers = append(a.closers, a.registry.Close)

	repo := sqlite.New(database, logger).WithPublisher(pub, cfg.Notify.Schema)
	var (
		source repository.Provider = repo
		writer repository.Writer   = repo
	)
	if cfg.Data.Driver == "memory" {
		source, writer = memory.New(ds, logger), nil
	} else {
		n, err := repo.Seed(ctx, ds)
		if err != nil {
			return fail(fmt.Errorf("seed: %w", err))
		}
		logger.Info("dataset seeded", slog.Int("inserted", n))
	}

	cached := cache.NewProvider(source, cache.New(cfg.Cache.MaxAge, m, logger))
	unbind, err := cached.BindAll(a.registry)
	if err != nil {
		return fail(fmt.Errorf("bind cache: %w", err))
	}
	a.closers = append(a.closers, func() error { unbind(); return nil })

	delivery := jobs.NewDelivery(repo, cfg.Jobs.WebhookURL, &http.Client{Timeout: 10 * time.Second}, logger)
	a.pool = jobs.NewWorkerPool(jobs.NewRepository(database), delivery.Handlers(), logger, cfg.Jobs.Workers)

	a.deps = api.Deps{
		Portfolio:   portfolio.New(cached, logger),
		Registry:    a.registry,
		Writer:      writer,
		Submissions: repo,
		Jobs:        a.pool,
		Metrics:     m,
	}
	return a, nil
}

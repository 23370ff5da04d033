package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter"
	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter/appstore"
	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter/marketplace"
	"github.com/yvh1223/antivirus-market-intelligence/internal/adapter/playstore"
	"github.com/yvh1223/antivirus-market-intelligence/internal/analysis"
	"github.com/yvh1223/antivirus-market-intelligence/internal/collector"
	"github.com/yvh1223/antivirus-market-intelligence/internal/config"
	"github.com/yvh1223/antivirus-market-intelligence/internal/logging"
	"github.com/yvh1223/antivirus-market-intelligence/internal/storage"
)

// App owns the wired object graph shared by the command-line entry points.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Pool     *pgxpool.Pool
	Reviews  *storage.ReviewRepo
	Jobs     *storage.JobRepo
	Catalog  *storage.CatalogRepo
	Registry *adapter.Registry

	Orchestrator *collector.Orchestrator
	Scheduler    *collector.Scheduler
	Processor    *analysis.Processor
}

// New loads configuration, connects to the database and wires every
// component. The caller owns Close.
func New(ctx context.Context) (*App, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	pool, err := storage.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	reviews := storage.NewReviewRepo(pool, cfg.Collection.BatchInsertSize, cfg.Collection.ChunkDelay(), logging.Component(logger, "reviews"))
	jobs := storage.NewJobRepo(pool)
	catalog := storage.NewCatalogRepo(pool)

	registry, err := buildRegistry(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	resolver := collector.NewCursorResolver(reviews, nil)
	orchestrator := collector.NewOrchestrator(reviews, jobs, resolver, logging.Component(logger, "orchestrator"))
	scheduler := collector.NewScheduler(catalog, orchestrator, registry, platformLocales(cfg), cfg.Collection.InterTargetDelay(), logging.Component(logger, "scheduler"))

	analyzer := analysis.NewOpenAIClient(cfg.OpenAI)
	processor := analysis.NewProcessor(reviews, catalog, analyzer, cfg.Analysis, logging.Component(logger, "analysis"))

	return &App{
		Config:       cfg,
		Logger:       logger,
		Pool:         pool,
		Reviews:      reviews,
		Jobs:         jobs,
		Catalog:      catalog,
		Registry:     registry,
		Orchestrator: orchestrator,
		Scheduler:    scheduler,
		Processor:    processor,
	}, nil
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}

// platformLocales collects each platform's configured storefront country and
// language for scheduler-driven runs.
func platformLocales(cfg config.Config) map[string]collector.Locale {
	locales := make(map[string]collector.Locale, len(cfg.Platforms))
	for _, platform := range cfg.Platforms {
		locales[platform.Name] = collector.Locale{
			Country:  platform.Country,
			Language: platform.Language,
		}
	}
	return locales
}

// buildRegistry maps configured platforms onto their adapter implementations.
func buildRegistry(cfg config.Config, logger *slog.Logger) (*adapter.Registry, error) {
	client := &http.Client{Timeout: cfg.Collection.HTTPTimeout()}
	olderLimit := cfg.Collection.OlderSeenLimit

	registry := adapter.NewRegistry()
	for _, platform := range cfg.Platforms {
		switch platform.Adapter {
		case "playstore":
			registry.Register(platform.Name, playstore.New(platform.BaseURL, client, olderLimit, logging.Component(logger, "playstore")))
		case "appstore":
			registry.Register(platform.Name, appstore.New(platform.BaseURL, client, olderLimit, logging.Component(logger, "appstore")))
		case "marketplace":
			registry.Register(platform.Name, marketplace.New(platform.BaseURL, client, olderLimit, logging.Component(logger, "marketplace")))
		default:
			return nil, fmt.Errorf("platform %s: unknown adapter %q", platform.Name, platform.Adapter)
		}
	}

	return registry, nil
}

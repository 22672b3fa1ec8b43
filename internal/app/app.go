// Package app wires configuration into a runnable crawl. It owns the
// long-lived, process-wide pieces and builds fresh per-crawl collaborators
// on every StartCrawl.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/batch"
	"github.com/JakeFAU/ecom-product-crawler/internal/browserpool"
	"github.com/JakeFAU/ecom-product-crawler/internal/classifier"
	"github.com/JakeFAU/ecom-product-crawler/internal/clock/system"
	"github.com/JakeFAU/ecom-product-crawler/internal/config"
	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
	"github.com/JakeFAU/ecom-product-crawler/internal/dedup"
	"github.com/JakeFAU/ecom-product-crawler/internal/extractor"
	collyfetcher "github.com/JakeFAU/ecom-product-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/ecom-product-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/ecom-product-crawler/internal/fetcher/hybrid"
	"github.com/JakeFAU/ecom-product-crawler/internal/frontier"
	"github.com/JakeFAU/ecom-product-crawler/internal/headless/detector"
	"github.com/JakeFAU/ecom-product-crawler/internal/id/uuid"
	"github.com/JakeFAU/ecom-product-crawler/internal/metrics"
	"github.com/JakeFAU/ecom-product-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/ecom-product-crawler/internal/storage/memory"
	"github.com/JakeFAU/ecom-product-crawler/internal/storage/postgres"
)

// App starts crawls. It is safe for concurrent use; each crawl gets its own
// frontier, dedup set, browser pool, writer and counters.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	ids    *uuid.Generator
	clock  system.Clock

	active atomic.Int64

	poolsMu sync.Mutex
	pools   map[*browserpool.Pool[*headlessfetcher.Browser]]struct{}

	openSink func(ctx context.Context) (crawler.Sink, error)
}

// New creates an App from validated configuration.
func New(cfg config.Config, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Metrics.Enabled {
		metrics.Init()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
		clock:  system.New(),
		pools:  make(map[*browserpool.Pool[*headlessfetcher.Browser]]struct{}),
	}
	a.openSink = a.defaultSink
	return a
}

// ActiveCrawls returns how many crawls are currently running.
func (a *App) ActiveCrawls() int64 {
	return a.active.Load()
}

// Browsers sums the occupancy of the browser pools of running crawls.
func (a *App) Browsers() browserpool.Stats {
	a.poolsMu.Lock()
	defer a.poolsMu.Unlock()
	var total browserpool.Stats
	for pool := range a.pools {
		s := pool.Stats()
		if s.Closed {
			delete(a.pools, pool)
			continue
		}
		total.Free += s.Free
		total.Leased += s.Leased
		total.Creating += s.Creating
		total.Max += s.Max
	}
	return total
}

func (a *App) trackPool(pool *browserpool.Pool[*headlessfetcher.Browser]) {
	a.poolsMu.Lock()
	a.pools[pool] = struct{}{}
	a.poolsMu.Unlock()
}

// EnsureSchema creates the product table if it is missing.
func (a *App) EnsureSchema(ctx context.Context) error {
	sink, err := a.openSink(ctx)
	if err != nil {
		return err
	}
	defer sink.Close()
	if err := sink.CreateSchemaIfAbsent(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// StartCrawl crawls outward from domains and returns the crawl report.
// Errors are returned only for invalid seeds or subsystem initialization;
// per-URL failures are counted in the report.
func (a *App) StartCrawl(ctx context.Context, domains []string) (report crawler.Report, err error) {
	seeds, err := crawler.NormalizeSeeds(domains)
	if err != nil {
		return crawler.Report{}, err
	}

	a.active.Add(1)
	defer a.active.Add(-1)
	if a.cfg.Metrics.Enabled {
		metrics.CrawlStarted()
		defer func() {
			metrics.CrawlFinished(crawlStatus(report, err))
		}()
	}

	engine, err := a.buildEngine(ctx)
	if err != nil {
		return crawler.Report{}, err
	}
	return engine.Run(ctx, seeds)
}

func crawlStatus(report crawler.Report, err error) string {
	switch {
	case err != nil:
		return "error"
	case report.Canceled:
		return "canceled"
	case report.StorageError != "":
		return "storage_error"
	default:
		return "success"
	}
}

// buildEngine assembles one crawl. On failure everything opened so far is released.
func (a *App) buildEngine(ctx context.Context) (engine *crawler.Engine, err error) {
	cfg := a.cfg
	log := a.logger

	sink, err := a.openSink(ctx)
	if err != nil {
		return nil, err
	}
	var pool *browserpool.Pool[*headlessfetcher.Browser]
	defer func() {
		if err != nil {
			if pool != nil {
				pool.Shutdown()
			}
			sink.Close()
		}
	}()
	if err = sink.CreateSchemaIfAbsent(ctx); err != nil {
		return nil, fmt.Errorf("prepare storage: %w", err)
	}

	var observer crawler.Observer
	if cfg.Metrics.Enabled {
		observer = metrics.NewObserver()
	}
	counters := crawler.NewMetrics(observer)
	retry := crawler.NewExponentialRetryPolicy(cfg.Crawler.MaxRetries, cfg.Crawler.RetryBase)

	var renderer hybrid.Renderer
	var resources crawler.ResourcePool
	if cfg.Browser.Enabled {
		launcher := headlessfetcher.NewLauncher(headlessfetcher.Config{
			Headless:          cfg.Browser.Headless,
			ExecPath:          cfg.Browser.ExecPath,
			UserAgents:        cfg.Crawler.UserAgents,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			NavigationStep:    cfg.Browser.NavigationStep,
			WaitTimeout:       cfg.Browser.WaitTimeout,
			WaitStep:          cfg.Browser.WaitStep,
			BlockResources:    cfg.Browser.BlockResources,
			Stealth:           cfg.Browser.Stealth,
			ViewportWidth:     cfg.Browser.ViewportWidth,
			ViewportHeight:    cfg.Browser.ViewportHeight,
		}, log)
		pool, err = browserpool.New[*headlessfetcher.Browser](launcher.Launch, cfg.Browser.MaxInstances, log)
		if err != nil {
			return nil, fmt.Errorf("init browser pool: %w", err)
		}
		a.trackPool(pool)
		renderer = headlessfetcher.NewRenderer(pool)
		resources = pool
	}

	userAgent := ""
	if len(cfg.Crawler.UserAgents) > 0 {
		userAgent = cfg.Crawler.UserAgents[0]
	}
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:     userAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTP.Timeout,
	})
	fetcher, err := hybrid.New(plain, renderer, detector.NewHeuristic(0, 0), retry, hybrid.Config{
		MinContentBytes: cfg.HTTP.MinContentBytes,
		EscalateShells:  cfg.Browser.EscalateSPAShells,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("init fetcher: %w", err)
	}

	limiterCfg := ratelimit.Config{BaseDelay: cfg.Crawler.BaseDelay}
	if cfg.Metrics.Enabled {
		limiterCfg.OnDelay = metrics.ObserveRateLimitDelay
	}

	writer, err := batch.New(sink, cfg.Crawler.BatchSize, counters, retry, log)
	if err != nil {
		return nil, fmt.Errorf("init batch writer: %w", err)
	}

	deps := crawler.Dependencies{
		Frontier:   frontier.New(a.clock),
		Seen:       dedup.NewScalable(cfg.Crawler.DedupInitialCapacity, cfg.Crawler.FalsePositiveRate),
		Throttler:  ratelimit.New(limiterCfg),
		Fetcher:    fetcher,
		Classifier: classifier.Default(),
		Extractor:  extractor.New(extractor.NewScope(extractor.ScopeConfig{DenyDomains: cfg.Crawler.DenyDomains}), log),
		Writer:     writer,
		Metrics:    counters,
		Clock:      a.clock,
		IDs:        a.ids,
		Store:      sink,
		Logger:     log,
	}
	if resources != nil {
		deps.Pool = resources
	}
	engine, err = crawler.NewEngine(deps, crawler.Options{
		MaxConcurrency: cfg.Crawler.MaxConcurrency,
		MaxPages:       cfg.Crawler.MaxPages,
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	return engine, nil
}

// defaultSink opens Postgres, or the in-memory store when the database is disabled.
func (a *App) defaultSink(ctx context.Context) (crawler.Sink, error) {
	if !a.cfg.DB.Enabled {
		a.logger.Info("database disabled; product urls are kept in memory")
		return memory.NewProductStore(), nil
	}
	if a.cfg.DB.DSN == "" {
		return nil, errors.New("db.dsn is required when db.enabled is true")
	}
	store, err := postgres.NewProductStore(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		Table:           a.cfg.DB.Table,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open product store: %w", err)
	}
	return store, nil
}

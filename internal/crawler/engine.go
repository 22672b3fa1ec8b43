package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/JakeFAU/ecom-product-crawler/internal/clock/system"
)

const defaultFinalFlushTimeout = 30 * time.Second

// Options bounds a crawl.
type Options struct {
	// MaxConcurrency caps in-flight URL processing across all domains.
	MaxConcurrency int
	// MaxPages stops dequeuing after this many URLs; 0 means unbounded.
	MaxPages int
	// FinalFlushTimeout bounds the crawl-end flush, which runs even after cancellation.
	FinalFlushTimeout time.Duration
}

// Dependencies are the collaborators wired into one crawl. Every crawl gets
// its own Frontier, Seen set, Writer, and Metrics.
type Dependencies struct {
	Frontier   Frontier
	Seen       Deduper
	Throttler  Throttler
	Fetcher    Fetcher
	Classifier Classifier
	Extractor  LinkExtractor
	Writer     ProductWriter
	Metrics    *Metrics
	Clock      Clock
	IDs        IDGenerator
	// Pool and Store are torn down when Run returns. Either may be nil.
	Pool   ResourcePool
	Store  Sink
	Logger *zap.Logger
}

// Engine drains the frontier under bounded concurrency.
type Engine struct {
	deps Dependencies
	opts Options
	log  *zap.Logger

	inflight atomic.Int64
	started  atomic.Int64
	idle     chan struct{}
}

// NewEngine validates deps and applies option defaults.
func NewEngine(deps Dependencies, opts Options) (*Engine, error) {
	switch {
	case deps.Frontier == nil:
		return nil, errors.New("frontier is required")
	case deps.Seen == nil:
		return nil, errors.New("dedup tracker is required")
	case deps.Throttler == nil:
		return nil, errors.New("throttler is required")
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Classifier == nil:
		return nil, errors.New("classifier is required")
	case deps.Extractor == nil:
		return nil, errors.New("link extractor is required")
	case deps.Writer == nil:
		return nil, errors.New("product writer is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 100
	}
	if opts.FinalFlushTimeout <= 0 {
		opts.FinalFlushTimeout = defaultFinalFlushTimeout
	}
	return &Engine{
		deps: deps,
		opts: opts,
		log:  deps.Logger.With(zap.String("component", "engine")),
		idle: make(chan struct{}, 1),
	}, nil
}

// Run crawls outward from seeds until the frontier drains, the page cap is
// hit, or ctx is cancelled. Per-URL failures only show up in the report.
// The returned error is non-nil only for invalid seeds.
func (e *Engine) Run(ctx context.Context, seeds []string) (report Report, err error) {
	defer e.teardown()

	normalized, err := NormalizeSeeds(seeds)
	if err != nil {
		return Report{}, err
	}

	report = Report{
		CrawlID:   e.newCrawlID(),
		Seeds:     normalized,
		StartedAt: e.deps.Clock.Now(),
	}
	log := e.log.With(zap.String("crawl_id", report.CrawlID))
	log.Info("crawl started", zap.Strings("seeds", normalized))

	for _, seed := range normalized {
		if e.deps.Seen.AddIfAbsent(seed) {
			e.deps.Frontier.Add(seed)
		}
	}

	e.drain(ctx, log)

	report.Canceled = ctx.Err() != nil
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.FinalFlushTimeout)
	defer cancel()
	if ferr := e.deps.Writer.Close(flushCtx); ferr != nil {
		report.StorageError = ferr.Error()
		log.Error("final flush failed", zap.Error(ferr), zap.Int("pending", e.deps.Writer.Pending()))
	}
	report.PendingUnflushed = e.deps.Writer.Pending()

	snap := e.deps.Metrics.Snapshot()
	report.URLsDiscovered = int64(e.deps.Seen.Count())
	report.URLsCrawled = snap.URLsCrawled
	report.ProductURLs = snap.ProductURLs
	report.Errors = snap.Errors
	report.BatchesFlushed = snap.BatchesFlushed
	report.DBErrors = snap.DBErrors
	report.FinishedAt = e.deps.Clock.Now()
	report.Duration = report.FinishedAt.Sub(report.StartedAt)

	log.Info("crawl finished",
		zap.Int64("urls_discovered", report.URLsDiscovered),
		zap.Int64("urls_crawled", report.URLsCrawled),
		zap.Int64("product_urls", report.ProductURLs),
		zap.Int64("errors", report.Errors),
		zap.Int64("batches_flushed", report.BatchesFlushed),
		zap.Int64("db_errors", report.DBErrors),
		zap.Bool("canceled", report.Canceled),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// drain is the single consumer of the frontier. Workers feed new links back
// in; the loop ends once the frontier is empty and nothing is in flight.
func (e *Engine) drain(ctx context.Context, log *zap.Logger) {
	sem := semaphore.NewWeighted(int64(e.opts.MaxConcurrency))
	var wg sync.WaitGroup
	defer wg.Wait()

	for ctx.Err() == nil {
		if e.opts.MaxPages > 0 && e.started.Load() >= int64(e.opts.MaxPages) {
			log.Info("page cap reached", zap.Int("max_pages", e.opts.MaxPages))
			return
		}

		// Slot first, then dequeue: the URL taken is the best one queued when a worker is free.
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		next, ok := e.deps.Frontier.Next()
		if !ok {
			sem.Release(1)
			if e.inflight.Load() == 0 {
				// Workers enqueue before they report done, so a final look catches late links.
				if e.deps.Frontier.IsEmpty() {
					return
				}
				continue
			}
			select {
			case <-e.idle:
			case <-ctx.Done():
			}
			continue
		}

		if !IsCrawlable(next) {
			sem.Release(1)
			log.Debug("skipping structurally invalid url", zap.String("url", next))
			continue
		}

		e.started.Add(1)
		e.inflight.Add(1)
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			defer func() {
				sem.Release(1)
				e.inflight.Add(-1)
				e.notify()
			}()
			e.process(ctx, target, log)
		}(next)
	}
}

func (e *Engine) process(ctx context.Context, target string, log *zap.Logger) {
	domain := Domain(target)
	if err := e.deps.Throttler.Throttle(ctx, domain); err != nil {
		log.Debug("throttle interrupted", zap.String("url", target), zap.Error(err))
		return
	}

	page, err := e.deps.Fetcher.Fetch(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.deps.Metrics.FetchFailed(domain)
		log.Warn("fetch failed", zap.String("url", target), zap.Error(err))
		return
	}
	e.deps.Metrics.PageCrawled(domain, page.Rendered, page.Duration)

	if e.deps.Classifier.IsProductPage(target) {
		e.deps.Metrics.ProductFound(domain)
		rec := ProductRecord{URL: target, Domain: domain, DiscoveredAt: e.deps.Clock.Now()}
		if werr := e.deps.Writer.Add(ctx, rec); werr != nil {
			log.Warn("buffered flush failed; batch retained", zap.String("url", target), zap.Error(werr))
		}
	}

	enqueued := 0
	for _, link := range e.deps.Extractor.Extract(page.Content, target) {
		if e.deps.Seen.AddIfAbsent(link) {
			e.deps.Frontier.Add(link)
			enqueued++
		}
	}
	if enqueued > 0 {
		e.notify()
	}
	log.Debug("page processed",
		zap.String("url", target),
		zap.Bool("rendered", page.Rendered),
		zap.Int("enqueued", enqueued),
	)
}

// notify wakes the drain loop without blocking.
func (e *Engine) notify() {
	select {
	case e.idle <- struct{}{}:
	default:
	}
}

func (e *Engine) teardown() {
	if e.deps.Pool != nil {
		e.deps.Pool.Shutdown()
	}
	if e.deps.Store != nil {
		e.deps.Store.Close()
	}
}

func (e *Engine) newCrawlID() string {
	if e.deps.IDs == nil {
		return fmt.Sprintf("crawl-%d", e.deps.Clock.Now().UnixNano())
	}
	id, err := e.deps.IDs.NewID()
	if err != nil {
		e.log.Warn("crawl id generation failed", zap.Error(err))
		return fmt.Sprintf("crawl-%d", e.deps.Clock.Now().UnixNano())
	}
	return id
}

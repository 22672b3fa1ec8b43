// Package hybrid chooses between plain HTTP and browser rendering per URL,
// validates what comes back, and retries with exponential backoff.
package hybrid

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// DefaultMinContentBytes is the smallest body accepted as a real page.
const DefaultMinContentBytes = 2048

var jsFrameworkHint = regexp.MustCompile(`(?i)/react/|/vue/|/angular/|single-page-app`)

// NeedsRendering reports whether url carries a JavaScript framework hint.
func NeedsRendering(url string) bool {
	return jsFrameworkHint.MatchString(url)
}

// ValidateContent rejects bodies without HTML structure or at most minBytes long.
func ValidateContent(content []byte, minBytes int) error {
	if len(content) <= minBytes {
		return fmt.Errorf("%w: %d bytes, need more than %d", crawler.ErrContentInvalid, len(content), minBytes)
	}
	lower := bytes.ToLower(content)
	if !bytes.Contains(lower, []byte("<body")) && !bytes.Contains(lower, []byte("<html")) {
		return fmt.Errorf("%w: no html or body element", crawler.ErrContentInvalid)
	}
	return nil
}

// PlainFetcher is the lightweight HTTP path.
type PlainFetcher interface {
	Get(ctx context.Context, url string) (crawler.Page, error)
}

// Renderer is the browser path. attempt is zero-based so timeouts can grow per retry.
type Renderer interface {
	Render(ctx context.Context, url string, attempt int) (crawler.Page, error)
}

// ShellDetector flags plain responses that need a browser after all.
type ShellDetector interface {
	LooksLikeShell(page crawler.Page) bool
}

// Config tunes the fetcher.
type Config struct {
	MinContentBytes int
	// EscalateShells re-fetches client-rendered shells through the renderer.
	EscalateShells bool
}

// Fetcher implements crawler.Fetcher.
type Fetcher struct {
	plain    PlainFetcher
	renderer Renderer
	detector ShellDetector
	retry    crawler.RetryPolicy
	cfg      Config
	pause    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// New builds a Fetcher. renderer and detector may be nil; without a renderer
// every URL takes the plain path.
func New(plain PlainFetcher, renderer Renderer, detector ShellDetector, retry crawler.RetryPolicy, cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if plain == nil {
		return nil, fmt.Errorf("plain fetcher is required")
	}
	if retry == nil {
		retry = crawler.NewExponentialRetryPolicy(0, 0)
	}
	if cfg.MinContentBytes <= 0 {
		cfg.MinContentBytes = DefaultMinContentBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		plain:    plain,
		renderer: renderer,
		detector: detector,
		retry:    retry,
		cfg:      cfg,
		pause:    crawler.Pause,
		logger:   logger.With(zap.String("component", "hybrid_fetcher")),
	}, nil
}

// Fetch returns validated content for url or a *crawler.FetchFailure once
// the retry policy gives up.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	render := f.renderer != nil && NeedsRendering(url)
	var lastErr error
	attempt := 0
	for ; ; attempt++ {
		page, err := f.attempt(ctx, url, attempt, render)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil || !f.retry.ShouldRetry(err, attempt) {
			break
		}
		delay := f.retry.Backoff(attempt)
		f.logger.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Bool("rendered", render),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if perr := f.pause(ctx, delay); perr != nil {
			break
		}
	}
	return crawler.Page{}, &crawler.FetchFailure{URL: url, Attempts: attempt + 1, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string, attempt int, render bool) (crawler.Page, error) {
	if render {
		return f.render(ctx, url, attempt)
	}
	page, err := f.plain.Get(ctx, url)
	if err != nil {
		return crawler.Page{}, err
	}
	if err := ValidateContent(page.Content, f.cfg.MinContentBytes); err != nil {
		if f.shouldEscalate(page) {
			return f.render(ctx, url, attempt)
		}
		return crawler.Page{}, err
	}
	if f.shouldEscalate(page) {
		rendered, rerr := f.render(ctx, url, attempt)
		if rerr == nil {
			return rendered, nil
		}
		f.logger.Debug("shell escalation failed; keeping plain body", zap.String("url", url), zap.Error(rerr))
	}
	return page, nil
}

func (f *Fetcher) render(ctx context.Context, url string, attempt int) (crawler.Page, error) {
	page, err := f.renderer.Render(ctx, url, attempt)
	if err != nil {
		return crawler.Page{}, err
	}
	if err := ValidateContent(page.Content, f.cfg.MinContentBytes); err != nil {
		return crawler.Page{}, err
	}
	return page, nil
}

func (f *Fetcher) shouldEscalate(page crawler.Page) bool {
	return f.cfg.EscalateShells && f.renderer != nil && f.detector != nil && f.detector.LooksLikeShell(page)
}

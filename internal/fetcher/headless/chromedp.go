// Package headless renders pages in pooled headless Chrome instances.
package headless

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// Config controls browser launch and per-page rendering.
type Config struct {
	Headless          bool
	ExecPath          string
	UserAgents        []string
	NavigationTimeout time.Duration
	NavigationStep    time.Duration
	WaitTimeout       time.Duration
	WaitStep          time.Duration
	BlockResources    bool
	Stealth           bool
	ViewportWidth     int
	ViewportHeight    int
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.NavigationStep < 0 {
		c.NavigationStep = 0
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 15 * time.Second
	}
	if c.WaitStep < 0 {
		c.WaitStep = 0
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1080
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = DefaultUserAgents
	}
	return c
}

// attemptTimeouts returns the navigation and body-wait budgets for a zero-based attempt.
func (c Config) attemptTimeouts(attempt int) (nav, wait time.Duration) {
	if attempt < 0 {
		attempt = 0
	}
	nav = c.NavigationTimeout + time.Duration(attempt)*c.NavigationStep
	wait = c.WaitTimeout + time.Duration(attempt)*c.WaitStep
	return nav, wait
}

// Launcher starts browser processes. Its Launch method is the pool factory.
type Launcher struct {
	cfg    Config
	logger *zap.Logger
	pick   func(n int) int
}

// NewLauncher creates a Launcher.
func NewLauncher(cfg Config, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		cfg:    cfg.withDefaults(),
		logger: logger.With(zap.String("component", "headless")),
		pick:   rand.IntN,
	}
}

// Launch starts one browser process with its own profile and user agent.
func (l *Launcher) Launch(ctx context.Context) (*Browser, error) {
	ua := l.cfg.UserAgents[l.pick(len(l.cfg.UserAgents))]
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(l.cfg, ua)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	// The first Run starts the process; stop early if the caller gives up.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	l.logger.Debug("browser launched", zap.String("user_agent", ua))
	return &Browser{
		cfg:           l.cfg,
		userAgent:     ua,
		ctx:           browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		logger:        l.logger,
	}, nil
}

func allocatorOptions(cfg Config, userAgent string) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
		chromedp.UserAgent(userAgent),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Browser is one live Chrome process. Each Render opens and closes its own tab.
type Browser struct {
	cfg           Config
	userAgent     string
	ctx           context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	logger        *zap.Logger
	closeOnce     sync.Once
}

// Close terminates the browser process.
func (b *Browser) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = chromedp.Cancel(b.ctx)
		b.browserCancel()
		b.allocCancel()
	})
	if err != nil {
		return fmt.Errorf("cancel browser: %w", err)
	}
	return nil
}

// Render loads url in a new tab and returns the serialized document.
func (b *Browser) Render(ctx context.Context, url string, attempt int) (crawler.Page, error) {
	navTimeout, waitTimeout := b.cfg.attemptTimeouts(attempt)

	tabCtx, cancelTab := chromedp.NewContext(b.ctx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	meta := &responseMeta{}
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			meta.capture(e)
		case *fetch.EventRequestPaused:
			go b.failRequest(tabCtx, e.RequestID)
		}
	})

	var html string
	start := time.Now()
	err := chromedp.Run(tabCtx,
		b.setupAction(),
		withTimeout(navTimeout, chromedp.Navigate(url)),
		withTimeout(waitTimeout, chromedp.WaitReady("body", chromedp.ByQuery)),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return crawler.Page{}, fmt.Errorf("render %s: %w", url, err)
	}

	status, finalURL := meta.snapshot()
	if finalURL == "" {
		finalURL = url
	}
	if status >= 400 {
		return crawler.Page{}, fmt.Errorf("render %s: unexpected status %d", url, status)
	}
	return crawler.Page{
		URL:      finalURL,
		Status:   status,
		Content:  []byte(html),
		Rendered: true,
		Duration: time.Since(start),
	}, nil
}

func (b *Browser) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(b.userAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := emulation.SetDeviceMetricsOverride(int64(b.cfg.ViewportWidth), int64(b.cfg.ViewportHeight), 1, false).Do(ctx); err != nil {
			return fmt.Errorf("set viewport: %w", err)
		}
		if b.cfg.Stealth {
			if _, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx); err != nil {
				return fmt.Errorf("install stealth script: %w", err)
			}
		}
		if b.cfg.BlockResources {
			if err := fetch.Enable().WithPatterns(blockedResourcePatterns()).Do(ctx); err != nil {
				return fmt.Errorf("enable request blocking: %w", err)
			}
		}
		return nil
	})
}

// failRequest aborts an intercepted static-resource request.
func (b *Browser) failRequest(tabCtx context.Context, id fetch.RequestID) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	execCtx := cdp.WithExecutor(tabCtx, c.Target)
	if err := fetch.FailRequest(id, network.ErrorReasonBlockedByClient).Do(execCtx); err != nil {
		b.logger.Debug("fail request", zap.Error(err))
	}
}

func withTimeout(d time.Duration, action chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return action.Do(tctx)
	})
}

// responseMeta records the status of the main document response.
type responseMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func (m *responseMeta) capture(event *network.EventResponseReceived) {
	if event.Type != network.ResourceTypeDocument || event.Response == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// The first document response belongs to the top frame; later ones are iframes.
	if m.status != 0 {
		return
	}
	m.status = int(event.Response.Status)
	m.url = event.Response.URL
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.url
}

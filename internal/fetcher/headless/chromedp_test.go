package headless

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ecom-product-crawler/internal/browserpool"
	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{}.withDefaults()
	require.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	require.Equal(t, 15*time.Second, cfg.WaitTimeout)
	require.Equal(t, 1920, cfg.ViewportWidth)
	require.Equal(t, 1080, cfg.ViewportHeight)
	require.Equal(t, DefaultUserAgents, cfg.UserAgents)
}

func TestAttemptTimeoutsScalePerRetry(t *testing.T) {
	t.Parallel()

	cfg := Config{
		NavigationTimeout: 30 * time.Second,
		NavigationStep:    10 * time.Second,
		WaitTimeout:       15 * time.Second,
		WaitStep:          5 * time.Second,
	}
	cases := []struct {
		attempt  int
		nav      time.Duration
		bodyWait time.Duration
	}{
		{0, 30 * time.Second, 15 * time.Second},
		{1, 40 * time.Second, 20 * time.Second},
		{2, 50 * time.Second, 25 * time.Second},
		{-1, 30 * time.Second, 15 * time.Second},
	}
	for _, tc := range cases {
		nav, wait := cfg.attemptTimeouts(tc.attempt)
		require.Equal(t, tc.nav, nav, "attempt %d", tc.attempt)
		require.Equal(t, tc.bodyWait, wait, "attempt %d", tc.attempt)
	}
}

func TestBlockedResourcePatterns(t *testing.T) {
	t.Parallel()

	patterns := blockedResourcePatterns()
	require.Len(t, patterns, 3)
	got := make([]network.ResourceType, 0, len(patterns))
	for _, p := range patterns {
		require.Equal(t, "*", p.URLPattern)
		require.Equal(t, fetch.RequestStageRequest, p.RequestStage)
		got = append(got, p.ResourceType)
	}
	require.ElementsMatch(t, []network.ResourceType{
		network.ResourceTypeImage,
		network.ResourceTypeStylesheet,
		network.ResourceTypeFont,
	}, got)
}

func TestStealthScriptHidesWebdriver(t *testing.T) {
	t.Parallel()

	require.Contains(t, stealthScript, "navigator, 'webdriver'")
	require.Contains(t, stealthScript, "undefined")
}

func TestAllocatorOptionsIncludeExecPath(t *testing.T) {
	t.Parallel()

	base := allocatorOptions(Config{Headless: true}.withDefaults(), "ua")
	withPath := allocatorOptions(Config{Headless: true, ExecPath: "/usr/bin/chromium"}.withDefaults(), "ua")
	require.Len(t, withPath, len(base)+1)
}

func TestResponseMetaKeepsTopDocument(t *testing.T) {
	t.Parallel()

	meta := &responseMeta{}
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeImage,
		Response: &network.Response{Status: 404, URL: "https://shop.example/logo.png"},
	})
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 200, URL: "https://shop.example/p/item"},
	})
	meta.capture(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 500, URL: "https://ads.example/frame"},
	})

	status, url := meta.snapshot()
	require.Equal(t, 200, status)
	require.Equal(t, "https://shop.example/p/item", url)
}

func TestLauncherPicksConfiguredUserAgent(t *testing.T) {
	t.Parallel()

	l := NewLauncher(Config{UserAgents: []string{"a", "b", "c"}}, nil)
	l.pick = func(n int) int { return n - 1 }
	require.Equal(t, "c", l.cfg.UserAgents[l.pick(len(l.cfg.UserAgents))])
}

func TestRendererSurfacesPoolErrors(t *testing.T) {
	t.Parallel()

	launchErr := errors.New("no chrome binary")
	pool, err := browserpool.New[*Browser](func(context.Context) (*Browser, error) {
		return nil, launchErr
	}, 1, nil)
	require.NoError(t, err)

	r := NewRenderer(pool)
	_, err = r.Render(context.Background(), "https://shop.example/", 0)
	require.ErrorIs(t, err, launchErr)

	pool.Shutdown()
	_, err = r.Render(context.Background(), "https://shop.example/", 0)
	require.ErrorIs(t, err, crawler.ErrPoolShutdown)
}

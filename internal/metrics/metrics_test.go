package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestObserverMirrorsCrawlEvents(t *testing.T) {
	obs := NewObserver()
	NewObserver()

	pages := crawlerPagesTotal.WithLabelValues("observer.example", "success", "rendered")
	failed := crawlerPagesTotal.WithLabelValues("observer.example", "error", "none")
	products := crawlerProductURLsTotal.WithLabelValues("observer.example")
	batchErrors := crawlerBatchesTotal.WithLabelValues("error")
	pagesBefore := testutil.ToFloat64(pages)
	failedBefore := testutil.ToFloat64(failed)
	productsBefore := testutil.ToFloat64(products)
	batchErrorsBefore := testutil.ToFloat64(batchErrors)
	rowsBefore := testutil.ToFloat64(crawlerBatchRowsTotal)

	obs.ObservePage("observer.example", true, true, 2*time.Second)
	obs.ObservePage("Observer.Example", false, false, 0)
	obs.ObserveProduct("observer.example")
	obs.ObserveBatch(10, nil)
	obs.ObserveBatch(4, errors.New("boom"))

	require.InDelta(t, pagesBefore+1, testutil.ToFloat64(pages), 0)
	require.InDelta(t, failedBefore+1, testutil.ToFloat64(failed), 0)
	require.InDelta(t, productsBefore+1, testutil.ToFloat64(products), 0)
	require.InDelta(t, batchErrorsBefore+1, testutil.ToFloat64(batchErrors), 0)
	require.InDelta(t, rowsBefore+10, testutil.ToFloat64(crawlerBatchRowsTotal), 0)
}

func TestCrawlLifecycleGauge(t *testing.T) {
	Init()
	before := testutil.ToFloat64(crawlerActiveCrawls)
	CrawlStarted()
	require.InDelta(t, before+1, testutil.ToFloat64(crawlerActiveCrawls), 0)
	CrawlFinished("success")
	require.InDelta(t, before, testutil.ToFloat64(crawlerActiveCrawls), 0)
	require.GreaterOrEqual(t, testutil.ToFloat64(crawlerCrawlsTotal.WithLabelValues("success")), 1.0)
}

func TestObserveRateLimitDelay(t *testing.T) {
	Init()
	ObserveRateLimitDelay("Delay.Example", 1500*time.Millisecond)
	require.Positive(t, testutil.CollectAndCount(crawlerRateLimitDelaysSeconds))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}

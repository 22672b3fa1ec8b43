package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
crawler:
  base_delay: 1ms
  retry_base: 1ms
browser:
  enabled: false
db:
  enabled: true
metrics:
  enabled: false
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCrawlDryRunPrintsReport(t *testing.T) {
	t.Parallel()

	filler := strings.Repeat("storefront copy ", 200)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = fmt.Fprintf(w, `<html><body><a href="/p/lamp-55555555">lamp</a><p>%s</p></body></html>`, filler)
		case "/p/lamp-55555555":
			_, _ = fmt.Fprintf(w, `<html><body><h1>lamp</h1><p>%s</p></body></html>`, filler)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--config", writeConfig(t), "crawl", "--dry-run", srv.URL})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var report crawler.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, int64(2), report.URLsCrawled)
	require.Equal(t, int64(1), report.ProductURLs)
	require.Empty(t, report.StorageError)
}

func TestCrawlRequiresDomains(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t), "crawl"})
	require.Error(t, root.ExecuteContext(context.Background()))
}

func TestCrawlWithoutDSNFails(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", writeConfig(t), "crawl", "shop.example"})
	err := root.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "db.dsn")
}

func TestRunServerStopsOnCancel(t *testing.T) {
	t.Parallel()

	srv := &http.Server{
		Addr:              "127.0.0.1:0",
		Handler:           http.NotFoundHandler(),
		ReadHeaderTimeout: time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, zap.NewNop()) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

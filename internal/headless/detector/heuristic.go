// Package detector spots client-rendered shells among plain HTTP responses.
package detector

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

var shellMarkers = [][]byte{
	[]byte("__NEXT_DATA__"),
	[]byte("data-reactroot"),
	[]byte("ng-app"),
	[]byte("window.__APOLLO_STATE__"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte(`id="__next"`),
}

// Heuristic flags pages whose useful content only appears after JavaScript runs.
type Heuristic struct {
	// MinVisibleText is the body text length below which a page counts as a shell.
	MinVisibleText int
	// MaxScriptShare is the script-to-document byte ratio, in percent, above which a page counts as a shell.
	MaxScriptShare int
}

// NewHeuristic creates a detector. Zero arguments select 200 characters and 25%.
func NewHeuristic(minVisibleText, maxScriptShare int) *Heuristic {
	if minVisibleText <= 0 {
		minVisibleText = 200
	}
	if maxScriptShare <= 0 {
		maxScriptShare = 25
	}
	return &Heuristic{MinVisibleText: minVisibleText, MaxScriptShare: maxScriptShare}
}

// LooksLikeShell reports whether page should be re-fetched through a browser.
// Rendered pages and error responses never qualify.
func (h *Heuristic) LooksLikeShell(page crawler.Page) bool {
	if page.Rendered || page.Status >= 300 {
		return false
	}
	body := page.Content
	if len(body) == 0 {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	scriptBytes := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		scriptBytes += len(s.Text())
	})
	if scriptBytes*100/len(body) >= h.MaxScriptShare {
		return true
	}

	visible := doc.Find("body").Clone()
	visible.Find("script, style, noscript, template").Remove()
	if len(strings.TrimSpace(visible.Text())) >= h.MinVisibleText {
		return false
	}
	for _, marker := range shellMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	return false
}

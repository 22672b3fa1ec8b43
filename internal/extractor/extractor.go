// Package extractor pulls crawlable links out of fetched HTML.
package extractor

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// Extractor resolves anchors against their page and filters them through a Scope.
type Extractor struct {
	scope  *Scope
	logger *zap.Logger
}

// New creates an Extractor. A nil scope uses the defaults.
func New(scope *Scope, logger *zap.Logger) *Extractor {
	if scope == nil {
		scope = NewScope(ScopeConfig{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{scope: scope, logger: logger.With(zap.String("component", "extractor"))}
}

// Extract returns the normalized in-scope links of content in document order,
// without duplicates. Malformed hrefs are logged and skipped.
func (e *Extractor) Extract(content []byte, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		e.logger.Warn("unusable base url", zap.String("base", baseURL), zap.Error(err))
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		e.logger.Warn("parse html failed", zap.String("base", baseURL), zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if skipHref(href) {
			return
		}
		link, err := e.resolve(base, href)
		if err != nil {
			e.logger.Warn("skipping link", zap.String("base", baseURL), zap.Error(err))
			return
		}
		if !e.scope.Allows(link, base) {
			return
		}
		normalized, err := crawler.NormalizeURL(link.String())
		if err != nil {
			return
		}
		if _, dup := seen[normalized]; dup {
			return
		}
		seen[normalized] = struct{}{}
		links = append(links, normalized)
	})
	return links
}

func (e *Extractor) resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return nil, &crawler.MalformedLinkError{Href: href, Err: err}
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs, nil
}

func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:", "sms:"} {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

package extractor

import (
	"net"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// DefaultExcludedPrefixes are path prefixes that never lead to product pages.
var DefaultExcludedPrefixes = []string{
	"/search", "/filter", "/cart", "/checkout", "/account", "/login", "/logout",
	"/register", "/help", "/contact", "/support", "/faq", "/wishlist", "/auth",
}

// DefaultAssetExtensions are file extensions of static assets.
var DefaultAssetExtensions = []string{
	".css", ".js", ".mjs", ".json", ".xml", ".txt", ".jpg", ".jpeg", ".png", ".gif",
	".webp", ".svg", ".ico", ".bmp", ".avif", ".woff", ".woff2", ".ttf", ".otf", ".eot",
	".pdf", ".zip", ".gz", ".mp3", ".mp4", ".webm", ".mov",
}

// DefaultTrackingParams are query keys that carry no page identity.
var DefaultTrackingParams = []string{
	"gclid", "fbclid", "msclkid", "dclid", "yclid", "mc_cid", "mc_eid", "ref", "ref_", "_ga", "igshid",
}

// Scope decides whether a resolved link is eligible for crawling.
type Scope struct {
	excludedPrefixes []string
	assetExtensions  map[string]struct{}
	trackingParams   map[string]struct{}
	deny             *crawler.DomainBlocklist
}

// ScopeConfig overrides the default rule tables. Nil slices keep the defaults.
type ScopeConfig struct {
	ExcludedPrefixes []string
	AssetExtensions  []string
	TrackingParams   []string
	DenyDomains      []string
}

// NewScope builds a Scope.
func NewScope(cfg ScopeConfig) *Scope {
	prefixes := cfg.ExcludedPrefixes
	if prefixes == nil {
		prefixes = DefaultExcludedPrefixes
	}
	exts := cfg.AssetExtensions
	if exts == nil {
		exts = DefaultAssetExtensions
	}
	params := cfg.TrackingParams
	if params == nil {
		params = DefaultTrackingParams
	}
	return &Scope{
		excludedPrefixes: lowerAll(prefixes),
		assetExtensions:  toSet(exts),
		trackingParams:   toSet(params),
		deny:             crawler.NewDomainBlocklist(cfg.DenyDomains),
	}
}

// Allows reports whether candidate may be crawled from a page at base.
func (s *Scope) Allows(candidate, base *url.URL) bool {
	if candidate.Scheme != "http" && candidate.Scheme != "https" {
		return false
	}
	host := strings.ToLower(candidate.Hostname())
	if host == "" || s.deny.IsBlocked(host) {
		return false
	}
	if !SameSite(host, base.Hostname()) {
		return false
	}
	lowerPath := strings.ToLower(candidate.Path)
	for _, prefix := range s.excludedPrefixes {
		if strings.HasPrefix(lowerPath, prefix) {
			return false
		}
	}
	if _, asset := s.assetExtensions[path.Ext(lowerPath)]; asset {
		return false
	}
	return !s.onlyTracking(candidate.Query())
}

func (s *Scope) onlyTracking(q url.Values) bool {
	if len(q) == 0 {
		return false
	}
	for key := range q {
		k := strings.ToLower(key)
		if strings.HasPrefix(k, "utm_") {
			continue
		}
		if _, ok := s.trackingParams[k]; !ok {
			return false
		}
	}
	return true
}

// SameSite reports whether two hosts share a registrable domain. IP
// addresses and hosts without a public suffix must match exactly.
func SameSite(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	if a == b {
		return true
	}
	if net.ParseIP(a) != nil || net.ParseIP(b) != nil {
		return false
	}
	ra, errA := publicsuffix.EffectiveTLDPlusOne(a)
	rb, errB := publicsuffix.EffectiveTLDPlusOne(b)
	if errA != nil || errB != nil {
		return false
	}
	return ra == rb
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range lowerAll(values) {
		set[v] = struct{}{}
	}
	return set
}

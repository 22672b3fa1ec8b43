package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes a URL so that equivalent spellings share one identity.
// It lowercases the scheme and host, removes default ports, sorts query
// parameters, defaults an empty path to "/", and drops the fragment.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Host != "" && u.Path == "" {
		u.Path = "/"
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}

// IsCrawlable reports whether rawURL is an absolute http(s) URL with a host.
func IsCrawlable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}

// Domain returns the lowercase host of rawURL without its port, or "" when unparsable.
func Domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// NormalizeSeeds turns user-supplied domains or URLs into normalized root URLs.
// Bare domains are assumed to be https. Duplicates are collapsed.
func NormalizeSeeds(domains []string) ([]string, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("%w: no domains supplied", ErrInvalidSeed)
	}
	seen := make(map[string]struct{}, len(domains))
	seeds := make([]string, 0, len(domains))
	var errs []error
	for _, raw := range domains {
		value := strings.TrimSpace(raw)
		if value == "" {
			errs = append(errs, fmt.Errorf("%w: empty domain", ErrInvalidSeed))
			continue
		}
		if !strings.Contains(value, "://") {
			value = "https://" + value
		}
		normalized, err := NormalizeURL(value)
		if err != nil || !IsCrawlable(normalized) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidSeed, raw))
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		seeds = append(seeds, normalized)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return seeds, nil
}

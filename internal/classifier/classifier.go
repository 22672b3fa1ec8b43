// Package classifier decides whether a URL points at a product detail page.
// Pattern tables are data; swap them by constructing a PatternClassifier
// with different expressions.
package classifier

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Strategy is the pluggable product-page test.
type Strategy interface {
	IsProductPage(rawURL string) bool
}

// DefaultProductPatterns match URL shapes common to product detail pages.
var DefaultProductPatterns = []string{
	`/p/[\w-]+`,
	`/buy/?$`,
	`/dp/[\w]{10}`,
	`/gp/product/[\w]{10}`,
	`[&?]pid=[\w]+`,
	`/p-[\w]+`,
	`/p-mp\d+`,
	`-p\d+`,
	`/\d{6,}(/|$)`,
}

// DefaultExclusionPatterns match listing, account and asset URLs.
var DefaultExclusionPatterns = []string{
	`/category/`,
	`/search`,
	`\.(jpe?g|png|gif|webp|svg)(\?|$)`,
	`/cart`,
	`/checkout`,
	`/review`,
	`/wishlist`,
	`/store/`,
	`/shop/`,
	`/list/`,
	`/filter`,
	`/login`,
	`/product-reviews`,
	`/auth`,
}

var (
	numericID = regexp.MustCompile(`\b\d{6,}\b`)
	slugID    = regexp.MustCompile(`[_-][a-z0-9]{8,}`)
)

// PatternClassifier requires a product-shape match, no exclusion match, and
// an identifier token in the path or query.
type PatternClassifier struct {
	product []*regexp.Regexp
	exclude []*regexp.Regexp
}

// New compiles a classifier from pattern tables. Patterns match case-insensitively.
func New(product, exclude []string) (*PatternClassifier, error) {
	p, err := compileAll(product)
	if err != nil {
		return nil, fmt.Errorf("compile product patterns: %w", err)
	}
	e, err := compileAll(exclude)
	if err != nil {
		return nil, fmt.Errorf("compile exclusion patterns: %w", err)
	}
	return &PatternClassifier{product: p, exclude: e}, nil
}

// Default returns the classifier built from the default tables.
func Default() *PatternClassifier {
	c, err := New(DefaultProductPatterns, DefaultExclusionPatterns)
	if err != nil {
		panic(err)
	}
	return c
}

// IsProductPage applies both checks to rawURL.
func (c *PatternClassifier) IsProductPage(rawURL string) bool {
	return c.MatchesShape(rawURL) && HasProductIdentifier(rawURL)
}

// MatchesShape reports whether rawURL matches a product pattern and no exclusion.
func (c *PatternClassifier) MatchesShape(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, re := range c.exclude {
		if re.MatchString(lower) {
			return false
		}
	}
	for _, re := range c.product {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// HasProductIdentifier reports whether the path or query of rawURL carries a
// product identifier: a standalone run of at least six digits, a "-" or "_"
// followed by eight or more alphanumerics, or a whole path segment or query
// value of eight or more alphanumerics that includes a digit.
func HasProductIdentifier(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	tail := strings.ToLower(u.EscapedPath())
	if u.RawQuery != "" {
		tail += "?" + strings.ToLower(u.RawQuery)
	}
	if numericID.MatchString(tail) || slugID.MatchString(tail) {
		return true
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if isOpaqueID(seg) {
			return true
		}
	}
	for _, values := range u.Query() {
		for _, v := range values {
			if isOpaqueID(v) {
				return true
			}
		}
	}
	return false
}

// isOpaqueID matches catalog codes such as B08N5WRWNW.
func isOpaqueID(s string) bool {
	if len(s) < 8 {
		return false
	}
	digit := false
	for _, r := range s {
		if !isAlnum(r) {
			return false
		}
		if r >= '0' && r <= '9' {
			digit = true
		}
	}
	return digit
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

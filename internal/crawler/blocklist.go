package crawler

import "strings"

// DomainBlocklist holds the hosts a crawl must never leave its seed for.
// "shop.example" matches that host only; "*.example" and ".example" match
// the domain and every subdomain. A nil blocklist blocks nothing.
type DomainBlocklist struct {
	exact map[string]struct{}
	trees map[string]struct{}
}

// NewDomainBlocklist parses crawler.deny_domains, returning nil when no pattern survives.
func NewDomainBlocklist(patterns []string) *DomainBlocklist {
	b := &DomainBlocklist{
		exact: make(map[string]struct{}),
		trees: make(map[string]struct{}),
	}
	for _, raw := range patterns {
		value := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), ".")
		tree := strings.TrimPrefix(strings.TrimPrefix(value, "*"), ".")
		switch {
		case tree == "":
		case tree != value:
			b.trees[tree] = struct{}{}
		default:
			b.exact[value] = struct{}{}
		}
	}
	if b.Len() == 0 {
		return nil
	}
	return b
}

// Len reports the number of distinct patterns.
func (b *DomainBlocklist) Len() int {
	if b == nil {
		return 0
	}
	return len(b.exact) + len(b.trees)
}

// IsBlocked reports whether host, or any parent domain of it, is denied.
func (b *DomainBlocklist) IsBlocked(host string) bool {
	if b.Len() == 0 {
		return false
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for name := host; name != ""; {
		if _, ok := b.trees[name]; ok {
			return true
		}
		dot := strings.IndexByte(name, '.')
		if dot < 0 {
			break
		}
		name = name[dot+1:]
	}
	return false
}

// Package ratelimit enforces a minimum interval between requests to the same domain.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseDelay is the politeness interval used when none is configured.
const DefaultBaseDelay = time.Second

// Limiter manages one token bucket per domain. Each bucket holds a single
// token refilled every BaseDelay, so consecutive requests to a domain are
// spaced by at least BaseDelay while other domains proceed independently.
type Limiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	baseDelay time.Duration
	onDelay   func(domain string, waited time.Duration)
}

// Config holds rate limiter configuration.
type Config struct {
	BaseDelay time.Duration
	// OnDelay, when set, is called after a caller was held back.
	OnDelay func(domain string, waited time.Duration)
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	delay := cfg.BaseDelay
	if delay < 0 {
		delay = 0
	}
	return &Limiter{
		limiters:  make(map[string]*rate.Limiter),
		baseDelay: delay,
		onDelay:   cfg.OnDelay,
	}
}

// Throttle suspends the caller until domain may be requested again.
func (l *Limiter) Throttle(ctx context.Context, domain string) error {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		domain = "unknown"
	}
	limiter := l.limiterFor(domain)

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle %s: %w", domain, err)
	}
	if waited := time.Since(start); waited > time.Millisecond && l.onDelay != nil {
		l.onDelay(domain, waited)
	}
	return nil
}

func (l *Limiter) domains() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[domain]
	if !ok {
		limit := rate.Inf
		if l.baseDelay > 0 {
			limit = rate.Every(l.baseDelay)
		}
		limiter = rate.NewLimiter(limit, 1)
		l.limiters[domain] = limiter
	}
	return limiter
}

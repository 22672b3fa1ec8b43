package crawler

import (
	"context"
	"time"
)

// Frontier is the prioritized queue of URLs waiting to be visited.
type Frontier interface {
	Add(url string)
	Next() (string, bool)
	IsEmpty() bool
}

// Deduper remembers URLs that have already been enqueued.
type Deduper interface {
	Contains(url string) bool
	Add(url string)
	// AddIfAbsent records url and reports whether it was new.
	AddIfAbsent(url string) bool
	// Count returns how many distinct URLs were recorded.
	Count() uint
}

// Throttler gates requests per domain.
type Throttler interface {
	Throttle(ctx context.Context, domain string) error
}

// Fetcher retrieves page content, retrying internally.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Classifier decides whether a URL points at a product detail page.
type Classifier interface {
	IsProductPage(url string) bool
}

// LinkExtractor returns the in-scope links found in a page.
type LinkExtractor interface {
	Extract(content []byte, baseURL string) []string
}

// ProductWriter buffers confirmed product URLs on their way to storage.
type ProductWriter interface {
	Add(ctx context.Context, rec ProductRecord) error
	// Close performs the final flush of anything still buffered.
	Close(ctx context.Context) error
	Pending() int
}

// Sink is the storage collaborator that persists product URLs.
type Sink interface {
	CreateSchemaIfAbsent(ctx context.Context) error
	BulkInsert(ctx context.Context, rows []ProductRecord) error
	Close()
}

// ResourcePool is the teardown capability the engine needs from a pool.
type ResourcePool interface {
	Shutdown()
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Observer receives crawl events for process-wide metrics export.
type Observer interface {
	ObservePage(domain string, ok bool, rendered bool, d time.Duration)
	ObserveProduct(domain string)
	ObserveBatch(rows int, err error)
}

package crawler

import (
	"time"
)

// Priority orders frontier work. Lower values are dequeued first.
type Priority int

// Priority classes, highest first.
const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

// String returns the lowercase class name.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// Page is the content retrieved for a single URL.
type Page struct {
	URL      string
	Status   int
	Content  []byte
	Rendered bool
	Duration time.Duration
}

// ProductRecord is a product URL confirmed by the classifier.
type ProductRecord struct {
	URL          string    `json:"url"`
	Domain       string    `json:"domain"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Report is the result payload of one crawl invocation.
type Report struct {
	CrawlID          string        `json:"crawl_id"`
	Seeds            []string      `json:"seeds"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	Duration         time.Duration `json:"duration"`
	URLsDiscovered   int64         `json:"urls_discovered"`
	URLsCrawled      int64         `json:"urls_crawled"`
	ProductURLs      int64         `json:"product_urls"`
	Errors           int64         `json:"errors"`
	BatchesFlushed   int64         `json:"batches_flushed"`
	DBErrors         int64         `json:"db_errors"`
	PendingUnflushed int           `json:"pending_unflushed"`
	StorageError     string        `json:"storage_error,omitempty"`
	Canceled         bool          `json:"canceled,omitempty"`
}

package crawler

import (
	"sync/atomic"
	"time"
)

// Metrics holds the counters for a single crawl invocation.
// A fresh value is created per crawl; nothing here is shared across crawls.
type Metrics struct {
	urlsCrawled    atomic.Int64
	productURLs    atomic.Int64
	errors         atomic.Int64
	batchesFlushed atomic.Int64
	dbErrors       atomic.Int64

	observer Observer
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	URLsCrawled    int64
	ProductURLs    int64
	Errors         int64
	BatchesFlushed int64
	DBErrors       int64
}

// NewMetrics creates zeroed counters. observer may be nil.
func NewMetrics(observer Observer) *Metrics {
	return &Metrics{observer: observer}
}

// PageCrawled records a successful fetch.
func (m *Metrics) PageCrawled(domain string, rendered bool, d time.Duration) {
	m.urlsCrawled.Add(1)
	if m.observer != nil {
		m.observer.ObservePage(domain, true, rendered, d)
	}
}

// FetchFailed records a URL whose fetch attempts were exhausted.
func (m *Metrics) FetchFailed(domain string) {
	m.errors.Add(1)
	if m.observer != nil {
		m.observer.ObservePage(domain, false, false, 0)
	}
}

// ProductFound records a classifier hit.
func (m *Metrics) ProductFound(domain string) {
	m.productURLs.Add(1)
	if m.observer != nil {
		m.observer.ObserveProduct(domain)
	}
}

// BatchFlushed records a committed batch of rows.
func (m *Metrics) BatchFlushed(rows int) {
	m.batchesFlushed.Add(1)
	if m.observer != nil {
		m.observer.ObserveBatch(rows, nil)
	}
}

// StorageFailed records a failed flush.
func (m *Metrics) StorageFailed(rows int, err error) {
	m.dbErrors.Add(1)
	if m.observer != nil {
		m.observer.ObserveBatch(rows, err)
	}
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		URLsCrawled:    m.urlsCrawled.Load(),
		ProductURLs:    m.productURLs.Load(),
		Errors:         m.errors.Load(),
		BatchesFlushed: m.batchesFlushed.Load(),
		DBErrors:       m.dbErrors.Load(),
	}
}

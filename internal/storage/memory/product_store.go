// Package memory stores product URLs in-memory for dry runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// ProductStore keeps product rows in insertion order with url uniqueness.
type ProductStore struct {
	mu     sync.RWMutex
	domain map[string]string
	order  []string
	closed bool
}

// NewProductStore creates an empty in-memory store.
func NewProductStore() *ProductStore {
	return &ProductStore{domain: make(map[string]string)}
}

// CreateSchemaIfAbsent is a no-op; the map is the schema.
func (s *ProductStore) CreateSchemaIfAbsent(context.Context) error {
	return nil
}

// BulkInsert records rows, ignoring URLs that are already present.
func (s *ProductStore) BulkInsert(_ context.Context, rows []crawler.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		if _, ok := s.domain[row.URL]; ok {
			continue
		}
		s.domain[row.URL] = row.Domain
		s.order = append(s.order, row.URL)
	}
	return nil
}

// Rows returns a copy of the stored rows in insertion order.
func (s *ProductStore) Rows() []crawler.ProductRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.ProductRecord, 0, len(s.order))
	for _, u := range s.order {
		out = append(out, crawler.ProductRecord{URL: u, Domain: s.domain[u]})
	}
	return out
}

// Closed reports whether Close has been called.
func (s *ProductStore) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close marks the store closed. Stored rows remain readable.
func (s *ProductStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

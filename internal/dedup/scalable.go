// Package dedup tracks URLs that have already been enqueued using a
// scalable bloom filter: a chain of fixed-size filters where each new stage
// is larger and stricter than the last, so the compound false-positive rate
// stays under the configured bound no matter how many URLs arrive.
package dedup

import (
	"math"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	defaultInitialCapacity = 100_000
	defaultFalsePositive   = 0.001
	growthFactor           = 2
	// tightening is the per-stage ratio applied to the error rate.
	tightening = 0.5
)

// Scalable is a concurrency-safe probabilistic URL set with no false negatives.
type Scalable struct {
	mu        sync.Mutex
	stages    []*bloom.BloomFilter
	capacity  uint
	filled    uint
	count     uint
	stageRate float64
}

// NewScalable creates a set whose overall false-positive rate stays at or below fpRate.
func NewScalable(initialCapacity uint, fpRate float64) *Scalable {
	if initialCapacity == 0 {
		initialCapacity = defaultInitialCapacity
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = defaultFalsePositive
	}
	s := &Scalable{
		capacity: initialCapacity,
		// Stage i uses rate*(1-r)*r^i, which sums to at most rate.
		stageRate: fpRate * (1 - tightening),
	}
	s.stages = []*bloom.BloomFilter{bloom.NewWithEstimates(initialCapacity, s.stageRate)}
	return s
}

// Contains reports whether url may have been added. A false result is exact.
func (s *Scalable) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testLocked([]byte(url))
}

// Add records url.
func (s *Scalable) Add(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := []byte(url)
	if s.testLocked(key) {
		return
	}
	s.addLocked(key)
}

// AddIfAbsent records url and reports whether it was not already present.
// The check and the insert happen under one lock.
func (s *Scalable) AddIfAbsent(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := []byte(url)
	if s.testLocked(key) {
		return false
	}
	s.addLocked(key)
	return true
}

// Count returns the number of distinct insertions accepted.
func (s *Scalable) Count() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *Scalable) stageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stages)
}

func (s *Scalable) testLocked(key []byte) bool {
	for i := len(s.stages) - 1; i >= 0; i-- {
		if s.stages[i].Test(key) {
			return true
		}
	}
	return false
}

func (s *Scalable) addLocked(key []byte) {
	if s.filled >= s.capacity {
		s.grow()
	}
	s.stages[len(s.stages)-1].Add(key)
	s.filled++
	s.count++
}

func (s *Scalable) grow() {
	next := len(s.stages)
	s.capacity *= growthFactor
	rate := s.stageRate * math.Pow(tightening, float64(next))
	s.stages = append(s.stages, bloom.NewWithEstimates(s.capacity, rate))
	s.filled = 0
}

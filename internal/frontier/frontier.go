// Package frontier implements the prioritized URL work queue.
package frontier

import (
	"regexp"
	"sync"
	"time"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

var (
	highPriority   = regexp.MustCompile(`(?i)/p/|/product|/dp/`)
	mediumPriority = regexp.MustCompile(`(?i)/category|/collection`)
)

// Classify derives the priority class of a URL from its shape.
func Classify(url string) crawler.Priority {
	switch {
	case highPriority.MatchString(url):
		return crawler.PriorityHigh
	case mediumPriority.MatchString(url):
		return crawler.PriorityMedium
	default:
		return crawler.PriorityLow
	}
}

// Entry is a queued URL.
type Entry struct {
	URL        string
	Priority   crawler.Priority
	EnqueuedAt time.Time
}

// Frontier holds one FIFO queue per priority class and always serves the
// highest non-empty class first. It does not deduplicate; callers consult a
// dedup tracker before Add.
type Frontier struct {
	mu     sync.Mutex
	queues [3][]Entry
	now    func() time.Time
}

// New creates an empty Frontier. clock may be nil.
func New(clock crawler.Clock) *Frontier {
	now := func() time.Time { return time.Now().UTC() }
	if clock != nil {
		now = clock.Now
	}
	return &Frontier{now: now}
}

// Add enqueues url under the class returned by Classify.
func (f *Frontier) Add(url string) {
	f.AddWithPriority(url, Classify(url))
}

// AddWithPriority enqueues url under an explicit class. Out-of-range classes become low.
func (f *Frontier) AddWithPriority(url string, p crawler.Priority) {
	if p < crawler.PriorityHigh || p > crawler.PriorityLow {
		p = crawler.PriorityLow
	}
	entry := Entry{URL: url, Priority: p, EnqueuedAt: f.now()}
	f.mu.Lock()
	f.queues[p] = append(f.queues[p], entry)
	f.mu.Unlock()
}

// NextEntry pops the head of the highest non-empty class.
func (f *Frontier) NextEntry() (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.queues {
		q := f.queues[i]
		if len(q) == 0 {
			continue
		}
		head := q[0]
		q[0] = Entry{}
		if len(q) == 1 {
			f.queues[i] = nil
		} else {
			f.queues[i] = q[1:]
		}
		return head, true
	}
	return Entry{}, false
}

// Next pops the next URL.
func (f *Frontier) Next() (string, bool) {
	entry, ok := f.NextEntry()
	return entry.URL, ok
}

// IsEmpty reports whether every class queue is empty.
func (f *Frontier) IsEmpty() bool {
	return f.Len() == 0
}

// Len returns the total number of queued entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for i := range f.queues {
		total += len(f.queues[i])
	}
	return total
}

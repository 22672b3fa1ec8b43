// Package browserpool bounds the number of live rendering-engine instances
// and leases them out one caller at a time.
package browserpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

// DefaultMaxInstances caps live instances when no limit is configured.
const DefaultMaxInstances = 20

// Instance is a pooled resource. Pointer types satisfy comparable.
type Instance interface {
	comparable
	Close() error
}

// Factory creates a new instance.
type Factory[T Instance] func(ctx context.Context) (T, error)

// Stats describes pool occupancy.
type Stats struct {
	Free     int  `json:"free"`
	Leased   int  `json:"leased"`
	Creating int  `json:"creating"`
	Max      int  `json:"max"`
	Closed   bool `json:"-"`
}

// Pool is a bounded set of reusable instances. Every operation takes the
// single pool lock; waiters park on a broadcast channel outside the lock.
type Pool[T Instance] struct {
	mu       sync.Mutex
	factory  Factory[T]
	max      int
	free     []T
	leased   map[T]struct{}
	creating int
	closed   bool
	wake     chan struct{}
	logger   *zap.Logger
}

// New creates an empty pool that grows on demand up to maxInstances.
func New[T Instance](factory Factory[T], maxInstances int, logger *zap.Logger) (*Pool[T], error) {
	if factory == nil {
		return nil, errors.New("browserpool: factory is required")
	}
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool[T]{
		factory: factory,
		max:     maxInstances,
		leased:  make(map[T]struct{}),
		wake:    make(chan struct{}),
		logger:  logger.With(zap.String("component", "browserpool")),
	}, nil
}

// Acquire leases a free instance, creates one while below the cap, or waits
// for a release. It fails with crawler.ErrPoolShutdown once shutdown began.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return zero, crawler.ErrPoolShutdown
		}
		if len(p.free) > 0 {
			// Oldest release first, so leases rotate across every live instance.
			inst := p.free[0]
			p.free = p.free[1:]
			p.leased[inst] = struct{}{}
			p.mu.Unlock()
			return inst, nil
		}
		if p.liveLocked() < p.max {
			p.creating++
			p.mu.Unlock()
			return p.create(ctx)
		}
		wait := p.wake
		p.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, fmt.Errorf("acquire instance: %w", ctx.Err())
		}
	}
}

func (p *Pool[T]) create(ctx context.Context) (T, error) {
	var zero T
	inst, err := p.factory(ctx)

	p.mu.Lock()
	p.creating--
	if err != nil {
		p.broadcastLocked()
		p.mu.Unlock()
		return zero, fmt.Errorf("launch instance: %w", err)
	}
	if p.closed {
		p.mu.Unlock()
		p.closeInstance(inst)
		return zero, crawler.ErrPoolShutdown
	}
	p.leased[inst] = struct{}{}
	p.mu.Unlock()
	return inst, nil
}

// Release returns a leased instance. Releasing an instance that is not
// leased, including a second release, is a no-op.
func (p *Pool[T]) Release(inst T) {
	p.mu.Lock()
	if _, ok := p.leased[inst]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.leased, inst)
	if p.closed || len(p.free) >= p.max {
		p.broadcastLocked()
		p.mu.Unlock()
		p.closeInstance(inst)
		return
	}
	p.free = append(p.free, inst)
	p.broadcastLocked()
	p.mu.Unlock()
}

// With leases an instance for the duration of fn and always releases it.
func (p *Pool[T]) With(ctx context.Context, fn func(T) error) error {
	inst, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(inst)
	return fn(inst)
}

// Shutdown closes every live instance, leased or free, and rejects future
// acquires. Calling it again does nothing.
func (p *Pool[T]) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	victims := make([]T, 0, len(p.free)+len(p.leased))
	victims = append(victims, p.free...)
	for inst := range p.leased {
		victims = append(victims, inst)
	}
	p.free = nil
	p.leased = make(map[T]struct{})
	p.broadcastLocked()
	p.mu.Unlock()

	for _, inst := range victims {
		p.closeInstance(inst)
	}
	p.logger.Info("pool shut down", zap.Int("closed", len(victims)))
}

// Stats returns current occupancy.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Free:     len(p.free),
		Leased:   len(p.leased),
		Creating: p.creating,
		Max:      p.max,
		Closed:   p.closed,
	}
}

func (p *Pool[T]) liveLocked() int {
	return len(p.free) + len(p.leased) + p.creating
}

func (p *Pool[T]) broadcastLocked() {
	close(p.wake)
	p.wake = make(chan struct{})
}

func (p *Pool[T]) closeInstance(inst T) {
	if err := inst.Close(); err != nil {
		p.logger.Warn("close instance failed", zap.Error(err))
	}
}

package browserpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

type fakeInstance struct {
	id       int
	closed   atomic.Int32
	closeErr error
}

func (f *fakeInstance) Close() error {
	f.closed.Add(1)
	return f.closeErr
}

type fakeFactory struct {
	mu      sync.Mutex
	created []*fakeInstance
	err     error
}

func (f *fakeFactory) launch(context.Context) (*fakeInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	inst := &fakeInstance{id: len(f.created)}
	f.created = append(f.created, inst)
	return inst, nil
}

func newTestPool(t *testing.T, max int) (*Pool[*fakeInstance], *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{}
	pool, err := New[*fakeInstance](factory.launch, max, nil)
	require.NoError(t, err)
	return pool, factory
}

func TestAcquireReusesReleasedInstance(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 2)
	ctx := context.Background()

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(first)

	again, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, first, again)
	require.Len(t, factory.created, 1)
}

func TestAcquireRotatesInReleaseOrder(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 2)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(a)
	pool.Release(b)

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)
	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.Same(t, a, first)
	require.Same(t, b, second)
	require.Equal(t, Stats{Leased: 2, Max: 2}, pool.Stats())
}

func TestThirdAcquireWaitsForRelease(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 2)
	ctx := context.Background()

	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = pool.Acquire(ctx)
	require.NoError(t, err)

	got := make(chan *fakeInstance, 1)
	go func() {
		inst, aerr := pool.Acquire(ctx)
		if aerr == nil {
			got <- inst
		}
	}()

	select {
	case <-got:
		t.Fatal("third acquire should block while both instances are leased")
	case <-time.After(100 * time.Millisecond):
	}

	pool.Release(a)
	select {
	case inst := <-got:
		require.Same(t, a, inst)
	case <-time.After(time.Second):
		t.Fatal("third acquire did not resume after release")
	}
	require.Len(t, factory.created, 2)
	require.Equal(t, 2, pool.Stats().Leased)
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 1)
	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShutdownClosesAllAndRejectsAcquire(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 3)
	ctx := context.Background()

	leased, err := pool.Acquire(ctx)
	require.NoError(t, err)
	spare, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(spare)

	pool.Shutdown()
	pool.Shutdown()

	for _, inst := range factory.created {
		require.Equal(t, int32(1), inst.closed.Load(), "instance %d", inst.id)
	}

	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, crawler.ErrPoolShutdown)

	pool.Release(leased)
	require.Equal(t, int32(1), leased.closed.Load())
	require.True(t, pool.Stats().Closed)
}

func TestShutdownWakesWaiters(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 1)
	_, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, aerr := pool.Acquire(context.Background())
		errCh <- aerr
	}()
	time.Sleep(50 * time.Millisecond)
	pool.Shutdown()

	select {
	case aerr := <-errCh:
		require.ErrorIs(t, aerr, crawler.ErrPoolShutdown)
	case <-time.After(time.Second):
		t.Fatal("waiter not released by shutdown")
	}
}

func TestDoubleReleaseIsNoop(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 2)
	inst, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.Release(inst)
	pool.Release(inst)
	stats := pool.Stats()
	require.Equal(t, 1, stats.Free)
	require.Equal(t, 0, stats.Leased)
}

func TestShutdownContinuesPastCloseErrors(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 2)
	a, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	a.closeErr = errors.New("boom")
	b, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	pool.Shutdown()
	require.Equal(t, int32(1), a.closed.Load())
	require.Equal(t, int32(1), b.closed.Load())
	require.Len(t, factory.created, 2)
}

func TestFactoryErrorFreesSlot(t *testing.T) {
	t.Parallel()

	pool, factory := newTestPool(t, 1)
	factory.err = errors.New("chrome missing")
	_, err := pool.Acquire(context.Background())
	require.ErrorContains(t, err, "chrome missing")
	require.Equal(t, 0, pool.Stats().Creating)

	factory.mu.Lock()
	factory.err = nil
	factory.mu.Unlock()
	_, err = pool.Acquire(context.Background())
	require.NoError(t, err)
}

func TestWithReleasesOnError(t *testing.T) {
	t.Parallel()

	pool, _ := newTestPool(t, 1)
	sentinel := errors.New("render failed")
	err := pool.With(context.Background(), func(*fakeInstance) error { return sentinel })
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, 1, pool.Stats().Free)
}

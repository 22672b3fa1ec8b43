package dedup

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScalableNoFalseNegatives(t *testing.T) {
	t.Parallel()

	s := NewScalable(64, 0.001)
	urls := make([]string, 0, 1000)
	for i := 0; i < 1000; i++ {
		u := fmt.Sprintf("https://shop.example/p/item-%d", i)
		urls = append(urls, u)
		s.Add(u)
	}
	for _, u := range urls {
		require.True(t, s.Contains(u), u)
	}
	require.Greater(t, s.stageCount(), 1, "filter should have grown past its initial capacity")
}

func TestScalableFalsePositiveRateBounded(t *testing.T) {
	t.Parallel()

	s := NewScalable(1000, 0.01)
	for i := 0; i < 5000; i++ {
		s.Add(fmt.Sprintf("https://a.example/%d", i))
	}
	falsePositives := 0
	const lookups = 10000
	for i := 0; i < lookups; i++ {
		if s.Contains(fmt.Sprintf("https://b.example/%d", i)) {
			falsePositives++
		}
	}
	require.Less(t, float64(falsePositives)/lookups, 0.03)
}

func TestScalableAddIfAbsent(t *testing.T) {
	t.Parallel()

	s := NewScalable(0, 0)
	require.True(t, s.AddIfAbsent("https://shop.example/"))
	require.False(t, s.AddIfAbsent("https://shop.example/"))
	require.True(t, s.Contains("https://shop.example/"))
	require.Equal(t, uint(1), s.Count())

	s.Add("https://shop.example/")
	require.Equal(t, uint(1), s.Count())
}

func TestScalableConcurrentAddIfAbsentSingleWinner(t *testing.T) {
	t.Parallel()

	s := NewScalable(128, 0.001)
	var wins atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.AddIfAbsent("https://shop.example/p/race") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), wins.Load())
}

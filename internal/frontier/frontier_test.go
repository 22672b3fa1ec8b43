package frontier

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ecom-product-crawler/internal/crawler"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		url  string
		want crawler.Priority
	}{
		{"https://shop.example/p/widget-123", crawler.PriorityHigh},
		{"https://shop.example/products/widget", crawler.PriorityHigh},
		{"https://shop.example/dp/B08N5WRWNW", crawler.PriorityHigh},
		{"https://shop.example/category/shoes", crawler.PriorityMedium},
		{"https://shop.example/collections/summer", crawler.PriorityMedium},
		{"https://shop.example/about", crawler.PriorityLow},
		{"https://shop.example/", crawler.PriorityLow},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Classify(tc.url), tc.url)
	}
}

func TestFrontierStrictPriorityAndFIFO(t *testing.T) {
	t.Parallel()

	f := New(nil)
	f.Add("https://shop.example/about")
	f.Add("https://shop.example/category/a")
	f.Add("https://shop.example/p/first")
	f.Add("https://shop.example/help")
	f.Add("https://shop.example/p/second")
	f.AddWithPriority("https://shop.example/forced", crawler.PriorityMedium)

	var got []string
	for !f.IsEmpty() {
		u, ok := f.Next()
		require.True(t, ok)
		got = append(got, u)
	}
	require.Equal(t, []string{
		"https://shop.example/p/first",
		"https://shop.example/p/second",
		"https://shop.example/category/a",
		"https://shop.example/forced",
		"https://shop.example/about",
		"https://shop.example/help",
	}, got)

	_, ok := f.Next()
	require.False(t, ok)
}

func TestFrontierHigherClassPreemptsQueuedLowerClass(t *testing.T) {
	t.Parallel()

	f := New(nil)
	for i := 0; i < 5; i++ {
		f.Add(fmt.Sprintf("https://shop.example/info/%d", i))
	}
	u, _ := f.Next()
	require.Equal(t, "https://shop.example/info/0", u)

	f.Add("https://shop.example/p/late")
	u, _ = f.Next()
	require.Equal(t, "https://shop.example/p/late", u)
	require.Equal(t, 4, f.Len())
}

func TestFrontierEntryMetadata(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := New(fixedClock{t: at})
	f.AddWithPriority("https://shop.example/x", crawler.Priority(42))

	entry, ok := f.NextEntry()
	require.True(t, ok)
	require.Equal(t, crawler.PriorityLow, entry.Priority)
	require.Equal(t, at, entry.EnqueuedAt)
}

func TestFrontierConcurrentProducers(t *testing.T) {
	t.Parallel()

	f := New(nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				f.Add(fmt.Sprintf("https://shop.example/%d/%d", w, i))
			}
		}(w)
	}
	wg.Wait()
	require.Equal(t, 800, f.Len())

	seen := make(map[string]struct{})
	for {
		u, ok := f.Next()
		if !ok {
			break
		}
		seen[u] = struct{}{}
	}
	require.Len(t, seen, 800)
}

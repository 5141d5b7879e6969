package client

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_Fetch(t *testing.T) {
	now := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	cache := NewCache(30 * time.Second)
	cache.now = func() time.Time { return now }

	var calls int
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v, err := Fetch(cache, "leads:list?page=1", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	now = now.Add(29 * time.Second)
	v, _ = Fetch(cache, "leads:list?page=1", fetch)
	assert.Equal(t, 1, v, "fresh within the staleness window")

	now = now.Add(time.Second)
	v, _ = Fetch(cache, "leads:list?page=1", fetch)
	assert.Equal(t, 2, v, "refetched once stale")

	v, _ = Fetch(cache, "leads:list?page=2", fetch)
	assert.Equal(t, 3, v, "keys are independent")
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	cache := NewCache(time.Minute)
	boom := errors.New("boom")

	_, err := Fetch(cache, "k", func() (string, error) { return "", boom })
	assert.Equal(t, boom, err)

	v, err := Fetch(cache, "k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_Invalidate(t *testing.T) {
	cache := NewCache(time.Minute)
	for _, key := range []string{"leads:list?page=1", "leads:ids?", "lead:42:detail", "lead:7:detail", "templates:?active=true"} {
		_, err := Fetch(cache, key, func() (bool, error) { return true, nil })
		require.NoError(t, err)
	}
	require.Equal(t, 5, cache.Len())

	cache.Invalidate("leads:", "lead:42:")
	assert.Equal(t, 2, cache.Len())

	cache.Invalidate()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_DeduplicatesInFlight(t *testing.T) {
	cache := NewCache(time.Minute)
	release := make(chan struct{})
	var calls int32

	fetch := func() (int, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Fetch(cache, "leads:list?", fetch)
		}(i)
	}
	// wait for the first caller to reach fetch before releasing everyone
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, []int{7, 7, 7, 7, 7}, results)
}

func TestCache_InvalidateDuringFetch(t *testing.T) {
	cache := NewCache(time.Minute)

	v, err := Fetch(cache, "leads:list?", func() (string, error) {
		cache.Invalidate("leads:")
		return "stale", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "stale", v, "the caller still gets its result")
	assert.Equal(t, 0, cache.Len(), "but it is not cached")

	v, _ = Fetch(cache, "leads:list?", func() (string, error) { return "fresh", nil })
	assert.Equal(t, "fresh", v)
}

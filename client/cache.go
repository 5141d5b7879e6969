package client

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry struct {
	value     interface{}
	fetchedAt time.Time
}

// Cache holds successful query results by key for a fixed staleness window.
// Identical concurrent fetches share one request. Superseded requests are not cancelled.
type Cache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	gen     uint64
	entries map[string]cacheEntry
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cache) lookup(key string) (interface{}, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && c.now().Sub(e.fetchedAt) < c.ttl {
		return e.value, c.gen, true
	}
	return nil, c.gen, false
}

func (c *Cache) store(key string, gen uint64, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// drop results of fetches that started before an invalidation
	if gen != c.gen {
		return
	}
	c.entries[key] = cacheEntry{value: v, fetchedAt: c.now()}
}

// Invalidate drops every entry whose key starts with one of prefixes, or every entry when
// none is given. Fetches already in flight will not populate the cache.
func (c *Cache) Invalidate(prefixes ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if len(prefixes) == 0 {
		c.entries = make(map[string]cacheEntry)
		return
	}
	for key := range c.entries {
		for _, p := range prefixes {
			if strings.HasPrefix(key, p) {
				delete(c.entries, key)
				break
			}
		}
	}
}

// Len is the number of fresh entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	for _, e := range c.entries {
		if c.now().Sub(e.fetchedAt) < c.ttl {
			n++
		}
	}
	return n
}

// Fetch returns the cached value for key, calling fn on a miss. Errors are never cached.
func Fetch[T any](c *Cache, key string, fn func() (T, error)) (T, error) {
	cached, gen, ok := c.lookup(key)
	if ok {
		return cached.(T), nil
	}

	v, err, _ := c.group.Do(strconv.FormatUint(gen, 10)+"|"+key, func() (interface{}, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		c.store(key, gen, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

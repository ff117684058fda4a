package compat

import (
	"context"
	"sync"

	"github.com/sievedata/sieve-engine/pkg/models"
)

// memoCache is a bounded map of check results. When full it evicts an
// arbitrary entry; the checker is an optimization, so losing a cached
// verdict only costs a recomputation.
type memoCache struct {
	mu      sync.Mutex
	entries map[string]Result
	max     int
}

func newMemoCache(max int) *memoCache {
	return &memoCache{entries: make(map[string]Result, max), max: max}
}

func (m *memoCache) get(key string) (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.entries[key]
	return r, ok
}

func (m *memoCache) put(key string, r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.max {
		for k := range m.entries {
			delete(m.entries, k)
			break
		}
	}
	m.entries[key] = r
}

func (m *memoCache) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type cachedChecker struct {
	inner Checker
	cache *memoCache
}

func withCache(inner Checker, size int) Checker {
	return &cachedChecker{inner: inner, cache: newMemoCache(size)}
}

func (c *cachedChecker) Mode() Mode { return c.inner.Mode() }

func (c *cachedChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	key := string(c.inner.Mode()) + "|" + pair.Left.String() + "|" + pair.Right.String()
	if r, ok := c.cache.get(key); ok {
		return r, nil
	}
	r, err := c.inner.Check(ctx, pair)
	if err != nil {
		return r, err
	}
	c.cache.put(key, r)
	return r, nil
}

package search

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sievedata/sieve-engine/pkg/graph"
)

// RuleEvaluationCache memoizes oracle verdicts by canonical rule key.
// Different strategies reach the same node sets along different walks;
// the cache makes the second arrival free. Bounded: at capacity an
// arbitrary entry is evicted, which is cheap and good enough for a cache
// whose entries are all equally likely to recur.
type RuleEvaluationCache struct {
	mu      sync.RWMutex
	entries map[string]Evaluation
	max     int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewRuleEvaluationCache creates a cache holding at most max entries.
// A non-positive max means unbounded.
func NewRuleEvaluationCache(max int) *RuleEvaluationCache {
	return &RuleEvaluationCache{
		entries: make(map[string]Evaluation),
		max:     max,
	}
}

// Get looks up a prior verdict.
func (c *RuleEvaluationCache) Get(key string) (Evaluation, bool) {
	c.mu.RLock()
	ev, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return ev, ok
}

// Put stores a verdict, evicting an arbitrary entry at capacity.
func (c *RuleEvaluationCache) Put(key string, ev Evaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && c.max > 0 && len(c.entries) >= c.max {
		for victim := range c.entries {
			delete(c.entries, victim)
			break
		}
	}
	c.entries[key] = ev
}

// Len returns the number of cached verdicts.
func (c *RuleEvaluationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns lifetime hit and miss counts.
func (c *RuleEvaluationCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Snapshot copies the cache contents for checkpointing.
func (c *RuleEvaluationCache) Snapshot() map[string]Evaluation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Evaluation, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Restore merges checkpointed entries back in, respecting the bound.
func (c *RuleEvaluationCache) Restore(entries map[string]Evaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range entries {
		if c.max > 0 && len(c.entries) >= c.max {
			break
		}
		c.entries[k] = v
	}
}

// evaluate consults the request's cache before its oracle. Every path a
// strategy takes to an evaluation goes through here so caching and
// metrics stay uniform.
func evaluate(ctx context.Context, req *Request, rule *graph.CandidateRule) (Evaluation, error) {
	var key string
	if req.Cache != nil {
		key = rule.CanonicalKey()
		if ev, ok := req.Cache.Get(key); ok {
			cacheHits.Inc()
			return ev, nil
		}
		cacheMisses.Inc()
	}
	ev, err := req.Oracle.Evaluate(ctx, rule)
	if err != nil {
		return Evaluation{}, err
	}
	if req.Cache != nil {
		req.Cache.Put(key, ev)
	}
	return ev, nil
}

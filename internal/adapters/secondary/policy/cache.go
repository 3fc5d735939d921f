package policy

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentweave/agentweave/internal/core/domain"
)

// entry pairs a cached decision with its insertion time, for TTL expiry on read.
type entry struct {
	decision domain.AuthorizationDecision
	storedAt time.Time
}

// DecisionCache is a bounded, TTL-expiring cache of authorization decisions,
// keyed by DecisionCacheKey (spec.md §3 "Decision Cache Key... LRU eviction
// on insert"). Size bound and eviction policy come from
// github.com/hashicorp/golang-lru/v2, which isn't a teacher dependency but is
// the ecosystem's standard bounded-LRU choice (see SPEC_FULL.md DOMAIN STACK).
type DecisionCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	ttl time.Duration
}

// NewDecisionCache constructs a cache holding up to size entries, each valid for ttl.
func NewDecisionCache(size int, ttl time.Duration) *DecisionCache {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, entry](size)
	return &DecisionCache{lru: c, ttl: ttl}
}

// Get returns the cached decision for key if present and not yet expired.
func (c *DecisionCache) Get(key domain.DecisionCacheKey) (domain.AuthorizationDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key.String())
	if !ok {
		return domain.AuthorizationDecision{}, false
	}
	if c.ttl > 0 && time.Since(e.storedAt) > c.ttl {
		c.lru.Remove(key.String())
		return domain.AuthorizationDecision{}, false
	}
	return e.decision, true
}

// Put inserts or replaces the cached decision for key.
func (c *DecisionCache) Put(key domain.DecisionCacheKey, decision domain.AuthorizationDecision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key.String(), entry{decision: decision, storedAt: time.Now()})
}

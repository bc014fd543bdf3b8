package verification

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/relves/fraledger/pkg/types"
)

// ResultCache shadows VerifyTransaction lookups. Implementations may be remote;
// errors are treated as misses.
type ResultCache interface {
	Get(ctx context.Context, key string) (*types.VerificationResult, bool, error)
	Set(ctx context.Context, key string, res *types.VerificationResult) error
}

// Defaults for the in-process cache.
const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = 10 * time.Minute
)

// LRUCache is an in-process ResultCache. Reads use Peek so recency is not
// updated and entries are evicted in insertion order.
type LRUCache struct {
	lru *expirable.LRU[string, *types.VerificationResult]
}

// NewLRUCache creates a cache of size entries that expire after ttl.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LRUCache{lru: expirable.NewLRU[string, *types.VerificationResult](size, nil, ttl)}
}

func (c *LRUCache) Get(_ context.Context, key string) (*types.VerificationResult, bool, error) {
	res, ok := c.lru.Peek(key)
	if !ok {
		return nil, false, nil
	}
	cp := *res
	return &cp, true, nil
}

func (c *LRUCache) Set(_ context.Context, key string, res *types.VerificationResult) error {
	cp := *res
	c.lru.Add(key, &cp)
	return nil
}

// Len returns the number of cached entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *LRUCache) Purge() {
	c.lru.Purge()
}

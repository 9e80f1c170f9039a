package validator

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"solana-airdrop/internal/domain"
)

// resultCache holds definitive validation results for a bounded time.
// A nil cache is valid and never hits.
type resultCache struct {
	mu    sync.Mutex
	store *lru.Cache[string, cacheEntry]
	ttl   time.Duration
}

type cacheEntry struct {
	result    domain.ValidationResult
	expiresAt time.Time
}

func newResultCache(size int, ttl time.Duration) *resultCache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	store, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil
	}
	return &resultCache{store: store, ttl: ttl}
}

func (c *resultCache) Get(address string, now time.Time) (domain.ValidationResult, bool) {
	if c == nil {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store.Get(address)
	if !ok {
		return "", false
	}
	if now.After(entry.expiresAt) {
		c.store.Remove(address)
		return "", false
	}
	return entry.result, true
}

func (c *resultCache) Add(address string, result domain.ValidationResult, now time.Time) {
	if c == nil || !result.IsDefinitive() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(address, cacheEntry{result: result, expiresAt: now.Add(c.ttl)})
}

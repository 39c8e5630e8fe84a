// Package cache holds short-lived snapshots of the redeemable offer list.
// Snapshots may be stale; readers must re-check redeemability themselves.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/nearby-deals/internal/model"
)

// MemoryCache is an in-process snapshot cache.
type MemoryCache struct {
	mu        sync.RWMutex
	offers    []model.Offer
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

// Get returns a copy of the cached snapshot if it has not expired.
func (c *MemoryCache) Get(_ context.Context) ([]model.Offer, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.offers == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	return append([]model.Offer(nil), c.offers...), true, nil
}

// Set stores a copy of offers for ttl.
func (c *MemoryCache) Set(_ context.Context, offers []model.Offer, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offers = append(make([]model.Offer, 0, len(offers)), offers...)
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// Invalidate drops the cached snapshot.
func (c *MemoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.offers = nil
	c.expiresAt = time.Time{}
	return nil
}

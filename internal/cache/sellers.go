package cache

import (
	"context"
	"time"
)

// SellerNameCache resolves seller display names. The offers payload only
// carries a name on some responses, so names seen once are remembered and
// reused to label later transitions and alerts.
type SellerNameCache struct {
	cache Cache
	ttl   time.Duration
}

// NewSellerNameCache wraps a Cache with seller-name keying and TTL.
func NewSellerNameCache(cache Cache, ttl time.Duration) *SellerNameCache {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &SellerNameCache{cache: cache, ttl: ttl}
}

func sellerKey(sellerID string) string {
	return "seller:" + sellerID
}

// Lookup returns the cached display name for a seller, or "" when unknown.
func (c *SellerNameCache) Lookup(ctx context.Context, sellerID string) string {
	if sellerID == "" {
		return ""
	}
	value, err := c.cache.Get(ctx, sellerKey(sellerID))
	if err != nil {
		return ""
	}
	return string(value)
}

// Remember stores a seller's display name. Empty names are ignored so a
// sparse payload never overwrites a name learned earlier.
func (c *SellerNameCache) Remember(ctx context.Context, sellerID, name string) error {
	if sellerID == "" || name == "" {
		return nil
	}
	return c.cache.Set(ctx, sellerKey(sellerID), []byte(name), c.ttl)
}

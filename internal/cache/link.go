package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/penshort/linkpulse/internal/model"
)

// Cache key prefixes and default TTLs.
const (
	linkKeyPrefix     = "link:"
	negCacheKeySuffix = ":neg"

	// DefaultLinkTTL bounds how long a deactivated link can keep redirecting.
	DefaultLinkTTL = 24 * time.Hour

	// DefaultNegativeTTL bounds how long a newly created short code can
	// still answer 404.
	DefaultNegativeTTL = 5 * time.Minute
)

// Common cache errors.
var (
	ErrCacheMiss = errors.New("cache miss")
)

func linkKey(shortCode string) string { return linkKeyPrefix + shortCode }

func negativeKey(shortCode string) string { return linkKeyPrefix + shortCode + negCacheKeySuffix }

// SetLinkTTLs overrides how long resolved and unknown short codes are
// cached. Non-positive values keep the current setting.
func (c *Cache) SetLinkTTLs(positive, negative time.Duration) {
	if positive > 0 {
		c.linkTTL = positive
	}
	if negative > 0 {
		c.negativeTTL = negative
	}
}

// GetLink retrieves a link from cache by short code.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLink(ctx context.Context, shortCode string) (*model.Link, error) {
	res := c.client.HGetAll(ctx, linkKey(shortCode))
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("redis hgetall failed: %w", err)
	}
	if len(res.Val()) == 0 {
		return nil, ErrCacheMiss
	}

	var cached model.CachedLink
	if err := res.Scan(&cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached link: %w", err)
	}
	if cached.ID == "" || cached.OriginalURL == "" {
		return nil, fmt.Errorf("cached link %q is incomplete", shortCode)
	}

	return cached.ToLink(shortCode), nil
}

// SetLink stores a link in cache and clears any negative entry. Inactive
// links are cached too so they keep answering 404 without a query.
func (c *Cache) SetLink(ctx context.Context, link *model.Link) error {
	key := linkKey(link.ShortCode)
	cached := link.ToCachedLink()
	fields := map[string]interface{}{
		"id":           cached.ID,
		"original_url": cached.OriginalURL,
		"is_active":    cached.IsActive,
		"updated_at":   cached.UpdatedAt,
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, c.linkTTL)
	pipe.Del(ctx, negativeKey(link.ShortCode))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache link: %w", err)
	}

	return nil
}

// IsNegativelyCached checks if a short code is in negative cache.
func (c *Cache) IsNegativelyCached(ctx context.Context, shortCode string) (bool, error) {
	exists, err := c.client.Exists(ctx, negativeKey(shortCode)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check negative cache: %w", err)
	}

	return exists > 0, nil
}

// SetNegativeCache marks a short code as not found.
func (c *Cache) SetNegativeCache(ctx context.Context, shortCode string) error {
	if err := c.client.SetEx(ctx, negativeKey(shortCode), "", c.negativeTTL).Err(); err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}

	return nil
}

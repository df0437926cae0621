package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/penshort/linkpulse/internal/model"
)

const geoKeyPrefix = "geo:"

// GetLocation returns the cached geolocation for ip.
// Returns ErrCacheMiss if not found.
func (c *Cache) GetLocation(ctx context.Context, ip string) (model.Location, error) {
	raw, err := c.client.Get(ctx, geoKeyPrefix+ip).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Location{}, ErrCacheMiss
		}
		return model.Location{}, fmt.Errorf("redis get failed: %w", err)
	}

	var loc model.Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return model.Location{}, fmt.Errorf("failed to decode cached location: %w", err)
	}

	return loc, nil
}

// SetLocation caches the geolocation for ip for ttl.
func (c *Cache) SetLocation(ctx context.Context, ip string, loc model.Location, ttl time.Duration) error {
	raw, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("failed to encode location: %w", err)
	}

	if err := c.client.Set(ctx, geoKeyPrefix+ip, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache location: %w", err)
	}

	return nil
}

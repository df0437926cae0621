// Package cache provides the Redis layer: short code lookups, geolocation
// answers and redirect rate limiting.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache provides Redis cache access methods.
type Cache struct {
	client      *redis.Client
	linkTTL     time.Duration
	negativeTTL time.Duration
}

// Option tunes the Redis client.
type Option func(*redis.Options)

// WithPoolSize caps the number of connections.
func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		if n > 0 {
			o.PoolSize = n
			if o.MinIdleConns > n {
				o.MinIdleConns = n
			}
		}
	}
}

// WithTimeouts sets the per-command read and write deadlines.
func WithTimeouts(read, write time.Duration) Option {
	return func(o *redis.Options) {
		if read > 0 {
			o.ReadTimeout = read
		}
		if write > 0 {
			o.WriteTimeout = write
		}
	}
}

// New creates a new Cache and verifies the connection.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := clientOptions(redisURL, opts...)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return NewFromClient(client), nil
}

func clientOptions(redisURL string, opts ...Option) (*redis.Options, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute
	opt.ClientName = "linkpulse"

	for _, o := range opts {
		o(opt)
	}
	return opt, nil
}

// NewFromClient wraps an existing Redis client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{
		client:      client,
		linkTTL:     DefaultLinkTTL,
		negativeTTL: DefaultNegativeTTL,
	}
}

// Ping checks Redis connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client. The ingest stream shares it.
func (c *Cache) Client() *redis.Client {
	return c.client
}

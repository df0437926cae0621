package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitIPPrefix is the Redis key prefix for per-IP redirect buckets.
const rateLimitIPPrefix = "ratelimit:ip:"

// RateLimitResult contains the result of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Remaining int64
	// ResetAt is when the bucket is full again.
	ResetAt time.Time
	// RetryAfter is the whole-second wait before the next token; zero when
	// the request was allowed.
	RetryAfter time.Duration
}

// tokenBucketScript refills and takes one token atomically. Time is passed
// in milliseconds so sub-second refills are not lost.
//
// Returns {allowed, retry_after_seconds, remaining_tokens, full_in_ms}.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local rate = tonumber(ARGV[1])
	local burst = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])

	local data = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(data[1]) or burst
	local ts = tonumber(data[2]) or now

	local elapsed = math.max(0, now - ts) / 1000
	tokens = math.min(burst, tokens + elapsed * rate)

	local allowed = 0
	local retry_after = 0
	if tokens >= 1 then
		tokens = tokens - 1
		allowed = 1
	else
		retry_after = math.ceil((1 - tokens) / rate)
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
	redis.call('PEXPIRE', key, ttl)

	local full_in = math.ceil((burst - tokens) / rate * 1000)
	return {allowed, retry_after, math.floor(tokens), full_in}
`)

// CheckIPRateLimit takes one token from the bucket of ip. The raw address is
// never stored; keys carry a truncated hash. Redis failures are returned so
// the caller decides whether to fail open.
func (c *Cache) CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*RateLimitResult, error) {
	if ratePerSecond <= 0 || burst <= 0 {
		return nil, fmt.Errorf("rate limit needs positive rate and burst, got %d/%d", ratePerSecond, burst)
	}

	now := time.Now()
	res, err := tokenBucketScript.Run(ctx, c.client,
		[]string{ipBucketKey(ip)},
		ratePerSecond, burst, now.UnixMilli(), bucketTTL(ratePerSecond, burst).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 4 {
		return nil, fmt.Errorf("rate limit script returned %d values", len(res))
	}

	return &RateLimitResult{
		Allowed:    res[0] == 1,
		Remaining:  res[2],
		ResetAt:    now.Add(time.Duration(res[3]) * time.Millisecond),
		RetryAfter: time.Duration(res[1]) * time.Second,
	}, nil
}

// bucketTTL keeps a bucket slightly longer than a full refill takes. An
// expired bucket is indistinguishable from a full one.
func bucketTTL(ratePerSecond, burst int) time.Duration {
	refill := math.Ceil(float64(burst) / float64(ratePerSecond))
	return time.Duration(refill+1) * time.Second
}

// ipBucketKey hashes the address to 16 hex characters.
func ipBucketKey(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return rateLimitIPPrefix + hex.EncodeToString(sum[:8])
}

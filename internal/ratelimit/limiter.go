// Package ratelimit implements a Redis-backed sliding window rate limiter
// used to guard the auth and generate endpoints against abuse.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textly/backend/internal/cache"
)

// Limiter enforces a per-identifier request limit over a sliding window
type Limiter struct {
	cache  *cache.Redis
	limit  int
	window time.Duration
}

// New creates a rate limiter allowing limit requests per window
func New(c *cache.Redis, limit int, window time.Duration) *Limiter {
	return &Limiter{
		cache:  c,
		limit:  limit,
		window: window,
	}
}

// Limit returns the configured request limit
func (l *Limiter) Limit() int {
	return l.limit
}

// Allow reports whether a request from identifier is within the limit and
// records it if so. Each request is stored in a sorted set with its
// timestamp as the score; entries older than the window are dropped first.
func (l *Limiter) Allow(ctx context.Context, identifier string) (bool, int, error) {
	now := time.Now()
	nowUnixMicro := now.UnixMicro()
	windowStart := now.Add(-l.window).UnixMicro()
	key := fmt.Sprintf("ratelimit:%s", identifier)

	client := l.cache.Client()
	pipe := client.Pipeline()

	// Remove entries outside the window
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))

	// Count current entries in window
	countCmd := pipe.ZCard(ctx, key)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return false, 0, fmt.Errorf("failed to execute rate limit check: %w", err)
	}

	count := int(countCmd.Val())
	if count >= l.limit {
		return false, 0, nil
	}

	// Microsecond member values keep rapid requests distinct
	err = client.ZAdd(ctx, key, redis.Z{
		Score:  float64(nowUnixMicro),
		Member: strconv.FormatInt(nowUnixMicro, 10),
	}).Err()
	if err != nil {
		return false, l.limit - count, fmt.Errorf("failed to add rate limit entry: %w", err)
	}

	// Expire the key so idle identifiers clean themselves up
	_ = client.Expire(ctx, key, l.window+time.Second).Err()

	return true, l.limit - count - 1, nil
}

// internal/repository/cache/rate_limiter.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	client *redis.Client
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Allow counts one request for subject on endpoint and reports whether it is
// within maxRequests for the current window. The window starts with the first
// request; EXPIRE NX leaves a running window alone.
func (r *RateLimiter) Allow(ctx context.Context, endpoint, subject string, maxRequests int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", endpoint, subject)

	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to count rate limit: %w", err)
	}

	return incr.Val() <= maxRequests, nil
}

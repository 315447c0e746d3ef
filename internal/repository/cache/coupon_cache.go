// internal/repository/cache/coupon_cache.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/damsblt/only-you-coaching-app-sub004/internal/pkg/environment"

	"github.com/redis/go-redis/v9"
)

const couponTTL = 30 * 24 * time.Hour

// CouponCache remembers coupons created on the fly. Promo code rows carry no
// environment, so the cache key does.
type CouponCache struct {
	client *redis.Client
}

func NewCouponCache(client *redis.Client) *CouponCache {
	return &CouponCache{client: client}
}

func couponKey(mode environment.Mode, code string) string {
	return fmt.Sprintf("billing:coupon:%s:%s", mode, strings.ToUpper(strings.TrimSpace(code)))
}

// Get returns the cached coupon id, or "" when none is cached.
func (c *CouponCache) Get(ctx context.Context, mode environment.Mode, code string) (string, error) {
	id, err := c.client.Get(ctx, couponKey(mode, code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read coupon cache: %w", err)
	}
	return id, nil
}

func (c *CouponCache) Set(ctx context.Context, mode environment.Mode, code, couponID string) error {
	if err := c.client.Set(ctx, couponKey(mode, code), couponID, couponTTL).Err(); err != nil {
		return fmt.Errorf("failed to write coupon cache: %w", err)
	}
	return nil
}

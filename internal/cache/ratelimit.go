package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter shared by every server using the same
// Redis.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: int64(limit), window: window}
}

// Allow counts one hit for key in the current window and reports whether the
// caller is still under the limit.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("bombchip:ratelimit:%s:%d", key, time.Now().UnixNano()/int64(l.window))

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= l.limit, nil
}

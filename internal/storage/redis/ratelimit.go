package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit:"

// IncrementRateLimit 固定窗口计数：INCR 与 EXPIRE NX 在同一个 pipeline 中执行，
// 窗口从第一次计数开始，不会被后续请求延长
func (c *Client) IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error) {
	key = rateLimitPrefix + key

	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// GetRateLimit 获取当前窗口计数
func (c *Client) GetRateLimit(ctx context.Context, key string) (int64, error) {
	count, err := c.rdb.Get(ctx, rateLimitPrefix+key).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

package memory

import (
	"context"
	"sync"
	"time"
)

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// RateLimiter 进程内固定窗口计数，未配置 Redis 时使用。
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*rateLimitEntry
	cleanup time.Time // 下次清理过期条目的时间
	now     func() time.Time
}

// NewRateLimiter 创建进程内限流计数器
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		entries: make(map[string]*rateLimitEntry),
		cleanup: time.Now().Add(5 * time.Minute),
		now:     time.Now,
	}
}

// IncrementRateLimit 增加限流计数
func (r *RateLimiter) IncrementRateLimit(_ context.Context, key string, window time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	// 每5分钟清理一次过期条目
	if now.After(r.cleanup) {
		for k, v := range r.entries {
			if now.After(v.ExpiresAt) {
				delete(r.entries, k)
			}
		}
		r.cleanup = now.Add(5 * time.Minute)
	}

	entry, exists := r.entries[key]
	if !exists || now.After(entry.ExpiresAt) {
		r.entries[key] = &rateLimitEntry{Count: 1, ExpiresAt: now.Add(window)}
		return 1, nil
	}

	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 获取限流计数
func (r *RateLimiter) GetRateLimit(_ context.Context, key string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[key]
	if !exists || r.now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

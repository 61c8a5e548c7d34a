package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/storage"
)

// RateLimit 按客户端 IP 的固定窗口限流。
// scope 区分路由分组，计数键为 scope:ip。计数存储不可用时放行。
func RateLimit(repo storage.RateLimitRepository, scope string, limit int64, window time.Duration, metrics *monitoring.Metrics, log *zap.Logger) gin.HandlerFunc {
	limitHeader := strconv.FormatInt(limit, 10)

	return func(c *gin.Context) {
		key := scope + ":" + c.ClientIP()

		count, err := repo.IncrementRateLimit(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("Rate limit store unavailable, allowing request",
				zap.String("scope", scope),
				zap.Error(err),
			)
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", limitHeader)
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			metrics.RecordRateLimitBlock(scope)
			log.Warn("Rate limit exceeded",
				zap.String("scope", scope),
				zap.String("ip", c.ClientIP()),
				zap.Int64("count", count),
			)
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			abortJSON(c, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later")
			return
		}

		c.Next()
	}
}

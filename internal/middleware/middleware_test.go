package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"datavault/backend/internal/auth/jwt"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"account_id": AccountID(c)})
	})
	r.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/panic", func(*gin.Context) { panic("boom") })
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	manager := jwt.NewManager(strings.Repeat("k", 32), "datavault", time.Hour)
	token, _, err := manager.GenerateToken("acc-1", "owner@example.com")
	require.NoError(t, err)

	r := newEngine(NewJWTAuth(manager, zap.NewNop()).RequireAuth())

	t.Run("缺少令牌", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"success":false`)
	})

	t.Run("无效令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := do(r, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_token")
	})

	t.Run("请求头令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := do(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "acc-1")
	})

	t.Run("查询参数令牌", func(t *testing.T) {
		w := do(r, httptest.NewRequest(http.MethodGet, "/ping?token="+token, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type failingCounter struct{}

func (failingCounter) IncrementRateLimit(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func (failingCounter) GetRateLimit(context.Context, string) (int64, error) {
	return 0, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	t.Run("超过上限返回 429", func(t *testing.T) {
		r := newEngine(RateLimit(memory.NewRateLimiter(), "api", 2, time.Minute, monitoring.NewMetrics(), zap.NewNop()))

		for i := 0; i < 2; i++ {
			w := do(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
			require.Equal(t, http.StatusOK, w.Code)
		}
		w := do(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
	})

	t.Run("不同分组独立计数", func(t *testing.T) {
		limiter := memory.NewRateLimiter()
		api := newEngine(RateLimit(limiter, "api", 1, time.Minute, nil, zap.NewNop()))
		hook := newEngine(RateLimit(limiter, "webhook", 1, time.Minute, nil, zap.NewNop()))

		assert.Equal(t, http.StatusOK, do(api, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
		assert.Equal(t, http.StatusOK, do(hook, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
		assert.Equal(t, http.StatusTooManyRequests, do(api, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	})

	t.Run("计数存储不可用时放行", func(t *testing.T) {
		r := newEngine(RateLimit(failingCounter{}, "api", 1, time.Minute, nil, zap.NewNop()))
		for i := 0; i < 3; i++ {
			assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
		}
	})
}

func TestBodySizeLimit(t *testing.T) {
	r := newEngine(BodySizeLimit(16))

	w := do(r, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"b"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"a":"`+strings.Repeat("x", 64)+`"}`)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "payload_too_large")
}

func TestMonitoringMiddleware(t *testing.T) {
	metrics := monitoring.NewMetrics()
	mm := NewMonitoringMiddleware(metrics, zap.NewNop())
	r := newEngine(mm.PanicRecovery(), mm.HTTPMetrics(), SecurityHeaders(), RequestLogger(zap.NewNop()))

	w := do(r, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = do(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal_error")

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["datavault_http_requests_total"])
	assert.True(t, names["datavault_panics_total"])
}

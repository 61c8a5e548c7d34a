package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/auth/jwt"
)

// 上下文键
const (
	ContextAccountID = "accountID"
	ContextEmail     = "email"
)

// JWTAuth JWT认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	log        *zap.Logger
}

// NewJWTAuth 创建JWT认证中间件
func NewJWTAuth(jwtManager *jwt.Manager, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		jwtManager: jwtManager,
		log:        log,
	}
}

// RequireAuth 要求JWT认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "Access token required")
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			ja.log.Warn("Invalid token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()),
			)
			abortJSON(c, http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
			return
		}

		// 将账户信息存储到上下文
		c.Set(ContextAccountID, claims.AccountID)
		c.Set(ContextEmail, claims.Email)

		c.Next()
	}
}

// AccountID 返回已认证请求的账户 ID
func AccountID(c *gin.Context) string {
	return c.GetString(ContextAccountID)
}

// extractToken 从请求中提取JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	// 1. 从 Authorization header 提取
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	// 2. 从查询参数提取，浏览器 WebSocket 无法设置请求头
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// abortJSON 以统一错误格式终止请求
func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   code,
		"message": message,
	})
}

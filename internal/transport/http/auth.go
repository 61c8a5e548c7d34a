package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/auth"
	"datavault/backend/internal/middleware"
)

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service
	log         *zap.Logger
}

// NewAuthHandler 创建新的认证处理器实例
func NewAuthHandler(authService *auth.Service, log *zap.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

type userSummary struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

func newSessionResponse(s *auth.Session) gin.H {
	return gin.H{
		"token":      s.Token,
		"expires_at": s.ExpiresAt.Unix(),
		"user": userSummary{
			ID:            s.Account.ID,
			Email:         s.Account.Email,
			EmailVerified: s.Account.EmailVerified,
		},
	}
}

// Register 处理用户注册请求
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Email is required")
		return
	}

	session, err := h.authService.Register(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, newSessionResponse(session))
}

// Login 按邮箱登录
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Email is required")
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	OK(c, newSessionResponse(session))
}

// Me 获取当前账户信息
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	accountID := middleware.AccountID(c)
	if accountID == "" {
		Fail(c, http.StatusUnauthorized, "unauthorized", "Access token required")
		return
	}

	account, err := h.authService.Me(c.Request.Context(), accountID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	OK(c, gin.H{"user": account})
}

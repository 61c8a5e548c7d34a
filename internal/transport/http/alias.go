package httptransport

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
	"datavault/backend/internal/middleware"
	"datavault/backend/internal/service"
)

// AliasHandler 处理别名管理请求
type AliasHandler struct {
	aliases *service.AliasService
	logs    *service.DeliveryLog
	log     *zap.Logger
}

// NewAliasHandler 创建别名处理器
func NewAliasHandler(aliases *service.AliasService, logs *service.DeliveryLog, log *zap.Logger) *AliasHandler {
	return &AliasHandler{aliases: aliases, logs: logs, log: log}
}

type aliasResponse struct {
	Alias       string     `json:"alias"`
	FullAddress string     `json:"full_address"`
	UserID      string     `json:"user_id"`
	IsActive    bool       `json:"is_active"`
	EmailCount  int64      `json:"email_count"`
	LastUsed    *time.Time `json:"last_used"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (h *AliasHandler) toResponse(alias *domain.Alias) aliasResponse {
	return aliasResponse{
		Alias:       alias.Token,
		FullAddress: h.aliases.FullAddress(alias.Token),
		UserID:      alias.AccountID,
		IsActive:    alias.IsActive,
		EmailCount:  alias.EmailCount,
		LastUsed:    alias.LastUsed,
		CreatedAt:   alias.CreatedAt,
	}
}

// Create 生成新别名
// POST /api/aliases
func (h *AliasHandler) Create(c *gin.Context) {
	alias, err := h.aliases.Create(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	Created(c, gin.H{"alias": h.toResponse(alias)})
}

// List 列出当前账户的别名
// GET /api/aliases
func (h *AliasHandler) List(c *gin.Context) {
	aliases, err := h.aliases.List(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	items := make([]aliasResponse, 0, len(aliases))
	for i := range aliases {
		items = append(items, h.toResponse(&aliases[i]))
	}
	OK(c, gin.H{"aliases": items, "count": len(items)})
}

// Get 获取单个别名
// GET /api/aliases/:alias
func (h *AliasHandler) Get(c *gin.Context) {
	alias, err := h.aliases.Get(c.Request.Context(), middleware.AccountID(c), c.Param("alias"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	OK(c, gin.H{"alias": h.toResponse(alias)})
}

// Delete 删除别名
// DELETE /api/aliases/:alias
func (h *AliasHandler) Delete(c *gin.Context) {
	if _, err := h.aliases.Delete(c.Request.Context(), middleware.AccountID(c), c.Param("alias")); err != nil {
		writeError(c, h.log, err)
		return
	}
	OK(c, gin.H{"message": "Alias deleted successfully"})
}

// Toggle 启用或停用别名
// PATCH /api/aliases/:alias/toggle
func (h *AliasHandler) Toggle(c *gin.Context) {
	alias, err := h.aliases.Toggle(c.Request.Context(), middleware.AccountID(c), c.Param("alias"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	state := "disabled"
	if alias.IsActive {
		state = "enabled"
	}
	OK(c, gin.H{
		"alias":     h.toResponse(alias),
		"is_active": alias.IsActive,
		"message":   "Alias " + state + " successfully",
	})
}

// Logs 别名的投递日志，?limit 最大 100
// GET /api/aliases/:alias/logs
func (h *AliasHandler) Logs(c *gin.Context) {
	limit := service.DefaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.logs.List(c.Request.Context(), middleware.AccountID(c), c.Param("alias"), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	if entries == nil {
		entries = []domain.DeliveryLogEntry{}
	}
	OK(c, gin.H{"logs": entries, "count": len(entries)})
}

package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
)

// apiError 业务错误到 HTTP 响应的映射
type apiError struct {
	status  int
	code    string
	message string
}

// 错误映射表，按顺序匹配，第一个命中的生效
var errorTable = []struct {
	err error
	apiError
}{
	{domain.ErrInvalidAliasFormat, apiError{http.StatusBadRequest, "invalid_alias_format", "Invalid alias format"}},
	{domain.ErrAliasNotFound, apiError{http.StatusNotFound, "alias_not_found", "Alias not found"}},
	{domain.ErrAliasDisabled, apiError{http.StatusForbidden, "alias_disabled", "Alias is disabled"}},
	{domain.ErrDuplicateToken, apiError{http.StatusConflict, "duplicate_alias", "Alias already exists"}},
	{domain.ErrGenerationExhausted, apiError{http.StatusInternalServerError, "generation_exhausted", "Failed to generate unique alias"}},
	{domain.ErrForwardingFailed, apiError{http.StatusInternalServerError, "forwarding_failed", "Failed to process email"}},
	{domain.ErrStorageUnavailable, apiError{http.StatusServiceUnavailable, "storage_unavailable", "Service temporarily unavailable"}},
	{domain.ErrAccountNotFound, apiError{http.StatusNotFound, "account_not_found", "User not found"}},
	{domain.ErrAccountExists, apiError{http.StatusConflict, "account_exists", "User already exists"}},
	{domain.ErrInvalidEmail, apiError{http.StatusBadRequest, "invalid_email", "Invalid email format"}},
	{domain.ErrEmailTooLong, apiError{http.StatusBadRequest, "invalid_email", "Email address too long"}},
}

var errInternal = apiError{http.StatusInternalServerError, "internal_error", "Internal server error"}

// lookupError 查找错误对应的响应，未知错误统一为 500
func lookupError(err error) apiError {
	for _, entry := range errorTable {
		if errors.Is(err, entry.err) {
			return entry.apiError
		}
	}
	return errInternal
}

// writeError 写出错误响应，5xx 记录完整错误，响应中不带内部细节
func writeError(c *gin.Context, log *zap.Logger, err error) {
	e := lookupError(err)
	if e.status >= http.StatusInternalServerError {
		log.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", e.code),
			zap.Error(err))
	}
	Fail(c, e.status, e.code, e.message)
}

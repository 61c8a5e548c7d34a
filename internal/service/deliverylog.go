package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
	"datavault/backend/internal/storage"
)

// DefaultLogLimit 查询投递日志的默认条数
const DefaultLogLimit = 100

// DeliveryLog 记录每次转发尝试。
// 写入失败只记录日志，不影响转发结果。
type DeliveryLog struct {
	repo    storage.DeliveryLogRepository
	aliases storage.AliasRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewDeliveryLog 创建投递日志服务
func NewDeliveryLog(repo storage.DeliveryLogRepository, aliases storage.AliasRepository, logger *zap.Logger) *DeliveryLog {
	return &DeliveryLog{
		repo:    repo,
		aliases: aliases,
		logger:  logger,
		now:     time.Now,
	}
}

// Append 追加一条日志并返回写入的记录
func (l *DeliveryLog) Append(ctx context.Context, alias, sender, subject, destination string, status domain.DeliveryStatus, detail string) *domain.DeliveryLogEntry {
	entry := &domain.DeliveryLogEntry{
		ID:          uuid.NewString(),
		Alias:       alias,
		Sender:      sender,
		Subject:     subject,
		Destination: destination,
		Status:      status,
		Detail:      detail,
		CreatedAt:   l.now().UTC(),
	}

	if err := l.repo.AppendDeliveryLog(ctx, entry); err != nil {
		l.logger.Error("Failed to append delivery log",
			zap.String("alias", alias),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
	return entry
}

// List 返回账户自有别名的投递日志，最新的在前
func (l *DeliveryLog) List(ctx context.Context, accountID, token string, limit int) ([]domain.DeliveryLogEntry, error) {
	token = normalizeToken(token)
	if !domain.ValidToken(token) {
		return nil, domain.ErrInvalidAliasFormat
	}

	alias, err := l.aliases.GetAlias(ctx, token)
	if err != nil {
		return nil, err
	}
	if alias.AccountID != accountID {
		return nil, domain.ErrAliasNotFound
	}

	if limit <= 0 || limit > DefaultLogLimit {
		limit = DefaultLogLimit
	}
	return l.repo.ListDeliveryLogs(ctx, token, limit)
}

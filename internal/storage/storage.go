package storage

import (
	"context"
	"time"

	"datavault/backend/internal/domain"
)

// AccountRepository 定义账户数据存取操作。
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error)
}

// AliasRepository 定义别名注册表操作。
//
// 归属检查失败（别名属于其他账户）一律返回 domain.ErrAliasNotFound，
// 不暴露别名是否存在。
type AliasRepository interface {
	CreateAlias(ctx context.Context, alias *domain.Alias) error
	GetAlias(ctx context.Context, token string) (*domain.Alias, error)
	LookupActiveAlias(ctx context.Context, token string) (*domain.AliasRecord, error)
	TokenExists(ctx context.Context, token string) (bool, error)
	ListAliasesByAccount(ctx context.Context, accountID string) ([]domain.Alias, error)
	DeleteAlias(ctx context.Context, token, accountID string) (*domain.Alias, error)
	SetAliasActive(ctx context.Context, token, accountID string, active bool) (*domain.Alias, error)
	RecordAliasUsage(ctx context.Context, token string) error
}

// DeliveryLogRepository 定义投递日志操作，只追加。
type DeliveryLogRepository interface {
	AppendDeliveryLog(ctx context.Context, entry *domain.DeliveryLogEntry) error
	ListDeliveryLogs(ctx context.Context, alias string, limit int) ([]domain.DeliveryLogEntry, error)
}

// RateLimitRepository 定义固定窗口限流计数。
type RateLimitRepository interface {
	IncrementRateLimit(ctx context.Context, key string, window time.Duration) (int64, error)
	GetRateLimit(ctx context.Context, key string) (int64, error)
}

// Store 聚合服务端需要的全部存储接口。
type Store interface {
	AccountRepository
	AliasRepository
	DeliveryLogRepository
	Health(ctx context.Context) error
	Close() error
}

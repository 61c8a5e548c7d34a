package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"datavault/backend/internal/domain"
)

// Store 使用内存保存账户、别名与投递日志，主要用于开发验证。
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account // accountID -> account
	byEmail  map[string]string          // email -> accountID
	aliases  map[string]*domain.Alias   // token -> alias
	logs     []domain.DeliveryLogEntry

	now func() time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
		byEmail:  make(map[string]string),
		aliases:  make(map[string]*domain.Alias),
		now:      time.Now,
	}
}

// Health 内存存储始终可用
func (s *Store) Health(context.Context) error { return nil }

// Close 无需释放资源
func (s *Store) Close() error { return nil }

// ========== 账户 ==========

// CreateAccount 创建账户，邮箱重复时返回 domain.ErrAccountExists。
func (s *Store) CreateAccount(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(account.Email)
	if _, ok := s.byEmail[email]; ok {
		return domain.ErrAccountExists
	}
	clone := *account
	s.accounts[account.ID] = &clone
	s.byEmail[email] = account.ID
	return nil
}

// GetAccount 根据 ID 获取账户。
func (s *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	clone := *account
	return &clone, nil
}

// GetAccountByEmail 根据邮箱获取账户。
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return s.GetAccount(ctx, id)
}

// ========== 别名 ==========

// CreateAlias 保存新别名，token 已存在时返回 domain.ErrDuplicateToken。
func (s *Store) CreateAlias(_ context.Context, alias *domain.Alias) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.aliases[alias.Token]; ok {
		return domain.ErrDuplicateToken
	}
	clone := *alias
	s.aliases[alias.Token] = &clone
	return nil
}

// GetAlias 返回别名原始记录，不区分是否启用。
func (s *Store) GetAlias(_ context.Context, token string) (*domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alias, ok := s.aliases[token]
	if !ok {
		return nil, domain.ErrAliasNotFound
	}
	clone := *alias
	return &clone, nil
}

// LookupActiveAlias 返回启用状态的别名及其账户邮箱。
func (s *Store) LookupActiveAlias(_ context.Context, token string) (*domain.AliasRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alias, ok := s.aliases[token]
	if !ok || !alias.IsActive {
		return nil, domain.ErrAliasNotFound
	}
	account, ok := s.accounts[alias.AccountID]
	if !ok {
		return nil, domain.ErrAliasNotFound
	}
	return &domain.AliasRecord{Alias: *alias, Destination: account.Email}, nil
}

// TokenExists 判断 token 是否已被占用。
func (s *Store) TokenExists(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.aliases[token]
	return ok, nil
}

// ListAliasesByAccount 按创建时间倒序返回账户的别名。
func (s *Store) ListAliasesByAccount(_ context.Context, accountID string) ([]domain.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Alias, 0)
	for _, alias := range s.aliases {
		if alias.AccountID == accountID {
			result = append(result, *alias)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].Token < result[j].Token
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteAlias 删除账户自己的别名，返回被删除的记录。
func (s *Store) DeleteAlias(_ context.Context, token, accountID string) (*domain.Alias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[token]
	if !ok || alias.AccountID != accountID {
		return nil, domain.ErrAliasNotFound
	}
	delete(s.aliases, token)
	return alias, nil
}

// SetAliasActive 修改账户自己别名的启用状态。
func (s *Store) SetAliasActive(_ context.Context, token, accountID string, active bool) (*domain.Alias, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[token]
	if !ok || alias.AccountID != accountID {
		return nil, domain.ErrAliasNotFound
	}
	alias.IsActive = active
	clone := *alias
	return &clone, nil
}

// RecordAliasUsage 转发计数加一并更新最近使用时间。
func (s *Store) RecordAliasUsage(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alias, ok := s.aliases[token]
	if !ok {
		return domain.ErrAliasNotFound
	}
	now := s.now().UTC()
	alias.EmailCount++
	alias.LastUsed = &now
	return nil
}

// ========== 投递日志 ==========

// AppendDeliveryLog 追加一条投递记录。
func (s *Store) AppendDeliveryLog(_ context.Context, entry *domain.DeliveryLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	return nil
}

// ListDeliveryLogs 按时间倒序返回别名的投递记录。
func (s *Store) ListDeliveryLogs(_ context.Context, alias string, limit int) ([]domain.DeliveryLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.DeliveryLogEntry, 0)
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].Alias != alias {
			continue
		}
		result = append(result, s.logs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

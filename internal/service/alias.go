package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"datavault/backend/internal/aliasgen"
	"datavault/backend/internal/domain"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/storage"
)

// AliasService 封装服务端别名的管理逻辑。
type AliasService struct {
	repo      storage.AliasRepository
	generator *aliasgen.Generator
	domain    string
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewAliasService 创建别名业务服务。
func NewAliasService(repo storage.AliasRepository, generator *aliasgen.Generator, forwardingDomain string, metrics *monitoring.Metrics, logger *zap.Logger) *AliasService {
	return &AliasService{
		repo:      repo,
		generator: generator,
		domain:    strings.ToLower(forwardingDomain),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Create 为账户生成并保存一个新别名。
// 写入时遇到并发产生的重复 token 会重新生成，生成与重试共用同一个尝试上限。
func (s *AliasService) Create(ctx context.Context, accountID string) (*domain.Alias, error) {
	remaining := s.generator.MaxAttempts()
	for remaining > 0 {
		token, used, err := s.generator.GenerateWithin(ctx, remaining)
		remaining -= used
		if err != nil {
			return nil, err
		}

		alias := &domain.Alias{
			Token:     token,
			AccountID: accountID,
			IsActive:  true,
			CreatedAt: s.now().UTC(),
		}
		err = s.repo.CreateAlias(ctx, alias)
		if errors.Is(err, domain.ErrDuplicateToken) {
			s.logger.Debug("Alias token taken by concurrent insert, retrying", zap.Int("remaining_attempts", remaining))
			continue
		}
		if err != nil {
			return nil, err
		}

		s.metrics.RecordAliasCreated()
		s.logger.Info("Alias created", zap.String("alias", token), zap.String("account_id", accountID))
		return alias, nil
	}
	return nil, domain.ErrGenerationExhausted
}

// List 返回账户的全部别名，最新的在前。
func (s *AliasService) List(ctx context.Context, accountID string) ([]domain.Alias, error) {
	aliases, err := s.repo.ListAliasesByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if aliases == nil {
		aliases = []domain.Alias{}
	}
	return aliases, nil
}

// Get 返回账户自有的别名，其他账户的别名视为不存在。
func (s *AliasService) Get(ctx context.Context, accountID, token string) (*domain.Alias, error) {
	token = normalizeToken(token)
	if !domain.ValidToken(token) {
		return nil, domain.ErrInvalidAliasFormat
	}

	alias, err := s.repo.GetAlias(ctx, token)
	if err != nil {
		return nil, err
	}
	if alias.AccountID != accountID {
		return nil, domain.ErrAliasNotFound
	}
	return alias, nil
}

// Delete 删除账户自有的别名。
func (s *AliasService) Delete(ctx context.Context, accountID, token string) (*domain.Alias, error) {
	token = normalizeToken(token)
	if !domain.ValidToken(token) {
		return nil, domain.ErrInvalidAliasFormat
	}

	alias, err := s.repo.DeleteAlias(ctx, token, accountID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAliasDeleted()
	s.logger.Info("Alias deleted", zap.String("alias", token), zap.String("account_id", accountID))
	return alias, nil
}

// Toggle 切换别名的启用状态，停用的别名同样可以切换。
func (s *AliasService) Toggle(ctx context.Context, accountID, token string) (*domain.Alias, error) {
	current, err := s.Get(ctx, accountID, token)
	if err != nil {
		return nil, err
	}

	alias, err := s.repo.SetAliasActive(ctx, current.Token, accountID, !current.IsActive)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordAliasToggled()
	s.logger.Info("Alias toggled",
		zap.String("alias", alias.Token),
		zap.Bool("is_active", alias.IsActive),
	)
	return alias, nil
}

// FullAddress 返回别名的完整地址。
func (s *AliasService) FullAddress(token string) string {
	return token + "@" + s.domain
}

// Domain 返回转发域名。
func (s *AliasService) Domain() string {
	return s.domain
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"datavault/backend/internal/auth/jwt"
	"datavault/backend/internal/domain"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/storage"
)

// Service 认证服务。账户只有邮箱，没有密码。
type Service struct {
	accounts storage.AccountRepository
	tokens   *jwt.Manager
	metrics  *monitoring.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// Session 注册或登录的结果
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"user"`
}

// NewService 创建认证服务
func NewService(accounts storage.AccountRepository, tokens *jwt.Manager, metrics *monitoring.Metrics, logger *zap.Logger) *Service {
	return &Service{
		accounts: accounts,
		tokens:   tokens,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// Register 创建账户并签发令牌
func (s *Service) Register(ctx context.Context, email string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmailAddress(email); err != nil {
		return nil, err
	}

	account := &domain.Account{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.metrics.RecordAccountRegistered()
	s.logger.Info("Account registered", zap.String("account_id", account.ID))
	return s.session(account)
}

// Login 按邮箱查找账户并签发令牌
func (s *Service) Login(ctx context.Context, email string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmailAddress(email); err != nil {
		return nil, err
	}

	account, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Account logged in", zap.String("account_id", account.ID))
	return s.session(account)
}

// Me 返回当前账户
func (s *Service) Me(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.accounts.GetAccount(ctx, accountID)
}

// ValidateToken 校验令牌并返回声明
func (s *Service) ValidateToken(token string) (*jwt.Claims, error) {
	return s.tokens.ValidateToken(token)
}

func (s *Service) session(account *domain.Account) (*Session, error) {
	token, expiresAt, err := s.tokens.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

// IsTokenError 判断是否为令牌校验错误
func IsTokenError(err error) bool {
	return errors.Is(err, jwt.ErrInvalidToken) || errors.Is(err, jwt.ErrExpiredToken)
}

package sql

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"datavault/backend/internal/domain"
)

// CreateAccount 创建账户
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	query := s.rebind(`
		INSERT INTO users (id, email, email_verified, created_at)
		VALUES (?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		strings.ToLower(account.Email),
		account.EmailVerified,
		account.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountExists
		}
		return storageErr("create account", err)
	}
	return nil
}

// GetAccount 根据ID获取账户
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return s.getAccount(ctx, "id", id)
}

// GetAccountByEmail 根据邮箱获取账户
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.getAccount(ctx, "email", strings.ToLower(email))
}

func (s *Store) getAccount(ctx context.Context, column, value string) (*domain.Account, error) {
	query := s.rebind(`SELECT id, email, email_verified, created_at FROM users WHERE ` + column + ` = ?`)

	var account domain.Account
	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&account.ID,
		&account.Email,
		&account.EmailVerified,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, storageErr("get account", err)
	}
	return &account, nil
}

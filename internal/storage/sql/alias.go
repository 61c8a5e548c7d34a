package sql

import (
	"context"
	"database/sql"
	"errors"

	"datavault/backend/internal/domain"
)

const aliasColumns = `alias, user_id, is_active, email_count, last_used, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlias(row rowScanner, extra ...any) (*domain.Alias, error) {
	var alias domain.Alias
	var lastUsed sql.NullTime

	dest := []any{
		&alias.Token,
		&alias.AccountID,
		&alias.IsActive,
		&alias.EmailCount,
		&lastUsed,
		&alias.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		alias.LastUsed = &t
	}
	return &alias, nil
}

// CreateAlias 插入新别名，唯一约束冲突转换为 domain.ErrDuplicateToken
func (s *Store) CreateAlias(ctx context.Context, alias *domain.Alias) error {
	query := s.rebind(`
		INSERT INTO aliases (alias, user_id, is_active, email_count, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		alias.Token,
		alias.AccountID,
		alias.IsActive,
		alias.EmailCount,
		alias.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateToken
		}
		return storageErr("create alias", err)
	}
	return nil
}

// GetAlias 返回别名原始记录，不区分是否启用
func (s *Store) GetAlias(ctx context.Context, token string) (*domain.Alias, error) {
	query := s.rebind(`SELECT ` + aliasColumns + ` FROM aliases WHERE alias = ?`)

	alias, err := scanAlias(s.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, storageErr("get alias", err)
	}
	return alias, nil
}

// LookupActiveAlias 联表查询启用的别名及账户邮箱
func (s *Store) LookupActiveAlias(ctx context.Context, token string) (*domain.AliasRecord, error) {
	query := s.rebind(`
		SELECT a.alias, a.user_id, a.is_active, a.email_count, a.last_used, a.created_at, u.email
		FROM aliases a
		JOIN users u ON u.id = a.user_id
		WHERE a.alias = ? AND a.is_active = TRUE
	`)

	var destination string
	alias, err := scanAlias(s.db.QueryRowContext(ctx, query, token), &destination)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, storageErr("lookup alias", err)
	}
	return &domain.AliasRecord{Alias: *alias, Destination: destination}, nil
}

// TokenExists 判断 token 是否已被占用（包括已禁用的别名）
func (s *Store) TokenExists(ctx context.Context, token string) (bool, error) {
	query := s.rebind(`SELECT COUNT(1) FROM aliases WHERE alias = ?`)

	var count int
	if err := s.db.QueryRowContext(ctx, query, token).Scan(&count); err != nil {
		return false, storageErr("check alias", err)
	}
	return count > 0, nil
}

// ListAliasesByAccount 按创建时间倒序列出账户的别名
func (s *Store) ListAliasesByAccount(ctx context.Context, accountID string) ([]domain.Alias, error) {
	query := s.rebind(`SELECT ` + aliasColumns + ` FROM aliases WHERE user_id = ? ORDER BY created_at DESC, alias ASC`)

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, storageErr("list aliases", err)
	}
	defer rows.Close()

	aliases := make([]domain.Alias, 0)
	for rows.Next() {
		alias, err := scanAlias(rows)
		if err != nil {
			return nil, storageErr("scan alias", err)
		}
		aliases = append(aliases, *alias)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list aliases", err)
	}
	return aliases, nil
}

// ownedAlias 读取别名并校验归属，不属于该账户时视为不存在
func (s *Store) ownedAlias(ctx context.Context, token, accountID string) (*domain.Alias, error) {
	alias, err := s.GetAlias(ctx, token)
	if err != nil {
		return nil, err
	}
	if alias.AccountID != accountID {
		return nil, domain.ErrAliasNotFound
	}
	return alias, nil
}

// DeleteAlias 删除账户自己的别名
func (s *Store) DeleteAlias(ctx context.Context, token, accountID string) (*domain.Alias, error) {
	alias, err := s.ownedAlias(ctx, token, accountID)
	if err != nil {
		return nil, err
	}

	query := s.rebind(`DELETE FROM aliases WHERE alias = ? AND user_id = ?`)
	res, err := s.db.ExecContext(ctx, query, token, accountID)
	if err != nil {
		return nil, storageErr("delete alias", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, domain.ErrAliasNotFound
	}
	return alias, nil
}

// SetAliasActive 修改账户自己别名的启用状态
func (s *Store) SetAliasActive(ctx context.Context, token, accountID string, active bool) (*domain.Alias, error) {
	alias, err := s.ownedAlias(ctx, token, accountID)
	if err != nil {
		return nil, err
	}

	// MySQL 在值未变化时 RowsAffected 为 0，这里不依赖它判断存在性
	query := s.rebind(`UPDATE aliases SET is_active = ? WHERE alias = ? AND user_id = ?`)
	if _, err := s.db.ExecContext(ctx, query, active, token, accountID); err != nil {
		return nil, storageErr("update alias", err)
	}
	alias.IsActive = active
	return alias, nil
}

// RecordAliasUsage 原子地增加转发计数并更新最近使用时间
func (s *Store) RecordAliasUsage(ctx context.Context, token string) error {
	query := s.rebind(`UPDATE aliases SET email_count = email_count + 1, last_used = ? WHERE alias = ?`)

	res, err := s.db.ExecContext(ctx, query, s.now().UTC(), token)
	if err != nil {
		return storageErr("record alias usage", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrAliasNotFound
	}
	return nil
}

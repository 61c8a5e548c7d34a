package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"datavault/backend/internal/domain"
)

// DB 是 Store 需要的最小 pgx 接口，*pgxpool.Pool 与 pgx.Tx 均满足
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store 基于 pgx 连接池的 PostgreSQL 存储实现
type Store struct {
	db   DB
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewStore 使用连接池创建存储
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool, now: time.Now}
}

// newStoreWithDB 供测试注入
func newStoreWithDB(db DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Health 检查连接池
func (s *Store) Health(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close 关闭连接池
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

// ========== 账户 ==========

// CreateAccount 创建账户
func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO users (id, email, email_verified, created_at) VALUES ($1, $2, $3, $4)`,
		account.ID, strings.ToLower(account.Email), account.EmailVerified, account.CreatedAt,
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
	return s.getAccount(ctx, `SELECT id, email, email_verified, created_at FROM users WHERE id = $1`, id)
}

// GetAccountByEmail 根据邮箱获取账户
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.getAccount(ctx, `SELECT id, email, email_verified, created_at FROM users WHERE email = $1`, strings.ToLower(email))
}

func (s *Store) getAccount(ctx context.Context, query, arg string) (*domain.Account, error) {
	var account domain.Account
	err := s.db.QueryRow(ctx, query, arg).Scan(&account.ID, &account.Email, &account.EmailVerified, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, storageErr("get account", err)
	}
	return &account, nil
}

// ========== 别名 ==========

const aliasColumns = `alias, user_id, is_active, email_count, last_used, created_at`

func scanAlias(row pgx.Row, extra ...any) (*domain.Alias, error) {
	var alias domain.Alias
	dest := []any{&alias.Token, &alias.AccountID, &alias.IsActive, &alias.EmailCount, &alias.LastUsed, &alias.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &alias, nil
}

// CreateAlias 插入新别名，唯一约束冲突转换为 domain.ErrDuplicateToken
func (s *Store) CreateAlias(ctx context.Context, alias *domain.Alias) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO aliases (alias, user_id, is_active, email_count, created_at) VALUES ($1, $2, $3, $4, $5)`,
		alias.Token, alias.AccountID, alias.IsActive, alias.EmailCount, alias.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateToken
		}
		return storageErr("create alias", err)
	}
	return nil
}

// GetAlias 返回别名原始记录
func (s *Store) GetAlias(ctx context.Context, token string) (*domain.Alias, error) {
	alias, err := scanAlias(s.db.QueryRow(ctx, `SELECT `+aliasColumns+` FROM aliases WHERE alias = $1`, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, storageErr("get alias", err)
	}
	return alias, nil
}

// LookupActiveAlias 联表查询启用的别名及账户邮箱
func (s *Store) LookupActiveAlias(ctx context.Context, token string) (*domain.AliasRecord, error) {
	row := s.db.QueryRow(ctx, `
		SELECT a.alias, a.user_id, a.is_active, a.email_count, a.last_used, a.created_at, u.email
		FROM aliases a
		JOIN users u ON u.id = a.user_id
		WHERE a.alias = $1 AND a.is_active`, token)

	var destination string
	alias, err := scanAlias(row, &destination)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, storageErr("lookup alias", err)
	}
	return &domain.AliasRecord{Alias: *alias, Destination: destination}, nil
}

// TokenExists 判断 token 是否已被占用
func (s *Store) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM aliases WHERE alias = $1)`, token).Scan(&exists); err != nil {
		return false, storageErr("check alias", err)
	}
	return exists, nil
}

// ListAliasesByAccount 按创建时间倒序列出账户的别名
func (s *Store) ListAliasesByAccount(ctx context.Context, accountID string) ([]domain.Alias, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+aliasColumns+` FROM aliases WHERE user_id = $1 ORDER BY created_at DESC, alias ASC`, accountID)
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

// DeleteAlias 删除账户自己的别名，RETURNING 一次完成归属校验
func (s *Store) DeleteAlias(ctx context.Context, token, accountID string) (*domain.Alias, error) {
	row := s.db.QueryRow(ctx,
		`DELETE FROM aliases WHERE alias = $1 AND user_id = $2 RETURNING `+aliasColumns, token, accountID)
	alias, err := scanAlias(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, storageErr("delete alias", err)
	}
	return alias, nil
}

// SetAliasActive 修改账户自己别名的启用状态
func (s *Store) SetAliasActive(ctx context.Context, token, accountID string, active bool) (*domain.Alias, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE aliases SET is_active = $1 WHERE alias = $2 AND user_id = $3 RETURNING `+aliasColumns,
		active, token, accountID)
	alias, err := scanAlias(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAliasNotFound
		}
		return nil, storageErr("update alias", err)
	}
	return alias, nil
}

// RecordAliasUsage 原子地增加转发计数
func (s *Store) RecordAliasUsage(ctx context.Context, token string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE aliases SET email_count = email_count + 1, last_used = $1 WHERE alias = $2`, s.now().UTC(), token)
	if err != nil {
		return storageErr("record alias usage", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAliasNotFound
	}
	return nil
}

// ========== 投递日志 ==========

// AppendDeliveryLog 追加一条投递记录
func (s *Store) AppendDeliveryLog(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO email_logs (id, alias, sender_email, subject, forwarded_to, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.Alias, entry.Sender, entry.Subject, entry.Destination,
		string(entry.Status), entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		return storageErr("append delivery log", err)
	}
	return nil
}

// ListDeliveryLogs 按时间倒序列出别名的投递记录
func (s *Store) ListDeliveryLogs(ctx context.Context, alias string, limit int) ([]domain.DeliveryLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, alias, sender_email, subject, forwarded_to, status, detail, created_at
		FROM email_logs WHERE alias = $1 ORDER BY created_at DESC LIMIT $2`, alias, limit)
	if err != nil {
		return nil, storageErr("list delivery logs", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DeliveryLogEntry, error) {
		var entry domain.DeliveryLogEntry
		var status string
		err := row.Scan(&entry.ID, &entry.Alias, &entry.Sender, &entry.Subject,
			&entry.Destination, &status, &entry.Detail, &entry.CreatedAt)
		entry.Status = domain.DeliveryStatus(status)
		return entry, err
	})
	if err != nil {
		return nil, storageErr("list delivery logs", err)
	}
	return entries, nil
}

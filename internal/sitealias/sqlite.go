package sitealias

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS site_aliases (
	domain     TEXT PRIMARY KEY,
	address    TEXT NOT NULL,
	format     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	last_used  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS site_formats (
	domain TEXT PRIMARY KEY,
	format TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const (
	keyTargetEmail   = "target_email"
	keyAliasFormat   = "alias_format"
	keyCompatibility = "compatibility_mode"
)

// SQLiteStore 基于 sqlite 文件的持久化存储
type SQLiteStore struct {
	db *sqlx.DB
}

// OpenSQLite 打开（必要时创建）数据库文件并建表。
// path 为 ":memory:" 时使用内存数据库。
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	// 内存库每个连接是独立的数据库
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close 关闭数据库
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveAlias(ctx context.Context, alias *SiteAlias) error {
	query := `
		INSERT INTO site_aliases (domain, address, format, created_at, last_used)
		VALUES (:domain, :address, :format, :created_at, :last_used)
		ON CONFLICT(domain) DO UPDATE SET
			address = excluded.address,
			format = excluded.format,
			created_at = excluded.created_at,
			last_used = excluded.last_used
	`
	if _, err := s.db.NamedExecContext(ctx, query, alias); err != nil {
		return fmt.Errorf("failed to save site alias: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAlias(ctx context.Context, domain string) (*SiteAlias, error) {
	var alias SiteAlias
	err := s.db.GetContext(ctx, &alias, `SELECT domain, address, format, created_at, last_used FROM site_aliases WHERE domain = ?`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site alias: %w", err)
	}
	return &alias, nil
}

func (s *SQLiteStore) TouchAlias(ctx context.Context, domain string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE site_aliases SET last_used = ? WHERE domain = ?`, at, domain)
	if err != nil {
		return fmt.Errorf("failed to update site alias: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListAliases(ctx context.Context) ([]SiteAlias, error) {
	aliases := []SiteAlias{}
	err := s.db.SelectContext(ctx, &aliases, `SELECT domain, address, format, created_at, last_used FROM site_aliases ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to list site aliases: %w", err)
	}
	return aliases, nil
}

func (s *SQLiteStore) DeleteAlias(ctx context.Context, domain string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM site_aliases WHERE domain = ?`, domain); err != nil {
		return fmt.Errorf("failed to delete site alias: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SiteFormat(ctx context.Context, domain string) (Format, error) {
	var format string
	err := s.db.GetContext(ctx, &format, `SELECT format FROM site_formats WHERE domain = ?`, domain)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get site format: %w", err)
	}
	return Format(format), nil
}

func (s *SQLiteStore) SetSiteFormat(ctx context.Context, domain string, format Format) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_formats (domain, format) VALUES (?, ?)
		ON CONFLICT(domain) DO UPDATE SET format = excluded.format`, domain, string(format))
	if err != nil {
		return fmt.Errorf("failed to save site format: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSettings(ctx context.Context) (Settings, error) {
	rows := []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}{}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings Settings
	for _, row := range rows {
		switch row.Key {
		case keyTargetEmail:
			settings.TargetEmail = row.Value
		case keyAliasFormat:
			settings.DefaultFormat = Format(row.Value)
		case keyCompatibility:
			settings.CompatibilityMode, _ = strconv.ParseBool(row.Value)
		}
	}
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings Settings) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	values := map[string]string{
		keyTargetEmail:   settings.TargetEmail,
		keyAliasFormat:   string(settings.DefaultFormat),
		keyCompatibility: strconv.FormatBool(settings.CompatibilityMode),
	}
	for key, value := range values {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

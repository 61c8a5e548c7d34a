// Package migrations 内嵌 goose 版本化迁移脚本，按数据库方言分目录存放。
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql mysql/*.sql
var FS embed.FS

// Dialect 把存储类型映射为 goose 方言和脚本目录
func Dialect(dbType string) (string, error) {
	switch dbType {
	case "postgres", "pgx":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database type for migrations: %q", dbType)
	}
}

// Run 执行迁移命令：up、down、status、version 或 reset
func Run(ctx context.Context, db *sql.DB, dbType, command string) error {
	dialect, err := Dialect(dbType)
	if err != nil {
		return err
	}

	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	switch command {
	case "up":
		err = goose.UpContext(ctx, db, dialect)
	case "down":
		err = goose.DownContext(ctx, db, dialect)
	case "status":
		err = goose.StatusContext(ctx, db, dialect)
	case "version":
		err = goose.VersionContext(ctx, db, dialect)
	case "reset":
		err = goose.ResetContext(ctx, db, dialect)
	default:
		return fmt.Errorf("unknown migration command: %q", command)
	}
	if err != nil {
		return fmt.Errorf("run migrations (%s): %w", command, err)
	}
	return nil
}

package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"datavault/backend/internal/config"
	"datavault/backend/internal/domain"
)

// Store SQL 数据库存储实现（支持 MySQL 5.7+ 和 PostgreSQL）
type Store struct {
	db         *sql.DB
	driverName string // "mysql" or "postgres"
	now        func() time.Time
}

// NewStore 根据配置打开数据库连接，可选执行 GORM 自动迁移
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	driverName := cfg.Type
	if driverName != "mysql" && driverName != "postgres" {
		return nil, fmt.Errorf("unsupported database driver: %s (supported: mysql, postgres)", driverName)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewStoreWithDB(db, driverName)

	if cfg.AutoMigrate {
		if err := store.AutoMigrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return store, nil
}

// NewStoreWithDB 使用已有连接创建存储，不做迁移
func NewStoreWithDB(db *sql.DB, driverName string) *Store {
	return &Store{
		db:         db,
		driverName: driverName,
		now:        time.Now,
	}
}

// AutoMigrate 通过 GORM 在同一个连接池上同步表结构。
// 生产环境推荐使用 cmd/migrate 的版本化迁移。
func (s *Store) AutoMigrate() error {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	if s.driverName == "mysql" {
		dialector = gormmysql.New(gormmysql.Config{Conn: s.db, SkipInitializeWithVersion: true})
	} else {
		dialector = gormpostgres.New(gormpostgres.Config{Conn: s.db})
	}

	gormDB, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize GORM: %w", err)
	}

	return gormDB.AutoMigrate(
		&domain.Account{},
		&domain.Alias{},
		&domain.DeliveryLogEntry{},
	)
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Health 检查数据库健康状态
func (s *Store) Health(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.PingContext(ctx)
}

// DB 返回底层连接，供迁移工具使用
func (s *Store) DB() *sql.DB {
	return s.db
}

// rebind 把查询中的 ? 依次替换为当前方言的占位符
func (s *Store) rebind(query string) string {
	return sqlx.Rebind(sqlx.BindType(s.driverName), query)
}

// isUniqueViolation 判断是否违反唯一约束（Postgres 23505, MySQL 1062）
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// storageErr 包装数据库错误为 domain.ErrStorageUnavailable
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}

package sql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datavault/backend/internal/domain"
)

func newMockStore(t *testing.T, driverName string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStoreWithDB(db, driverName), mock
}

var aliasRowColumns = []string{"alias", "user_id", "is_active", "email_count", "last_used", "created_at"}

func TestRebind(t *testing.T) {
	pg := NewStoreWithDB(nil, "postgres")
	my := NewStoreWithDB(nil, "mysql")

	query := "UPDATE aliases SET is_active = ? WHERE alias = ? AND user_id = ?"
	assert.Equal(t, "UPDATE aliases SET is_active = $1 WHERE alias = $2 AND user_id = $3", pg.rebind(query))
	assert.Equal(t, query, my.rebind(query))

	multiline := "INSERT INTO email_logs (id, alias)\n\t\tVALUES (?, ?)"
	assert.Equal(t, "INSERT INTO email_logs (id, alias)\n\t\tVALUES ($1, $2)", pg.rebind(multiline))
	assert.Equal(t, "SELECT 1", pg.rebind("SELECT 1"))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, isUniqueViolation(&mysqldriver.MySQLError{Number: 1062}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}

func TestStore_CreateAlias(t *testing.T) {
	ctx := context.Background()
	alias := &domain.Alias{Token: "abcd1234", AccountID: "acc-1", IsActive: true, CreatedAt: time.Now()}

	t.Run("成功插入", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO aliases (alias, user_id, is_active, email_count, created_at)")).
			WithArgs("abcd1234", "acc-1", true, int64(0), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.CreateAlias(ctx, alias))
	})

	t.Run("postgres 唯一约束冲突", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectExec("INSERT INTO aliases").WillReturnError(&pq.Error{Code: "23505"})

		assert.ErrorIs(t, store.CreateAlias(ctx, alias), domain.ErrDuplicateToken)
	})

	t.Run("mysql 唯一约束冲突", func(t *testing.T) {
		store, mock := newMockStore(t, "mysql")
		mock.ExpectExec("INSERT INTO aliases").WillReturnError(&mysqldriver.MySQLError{Number: 1062})

		assert.ErrorIs(t, store.CreateAlias(ctx, alias), domain.ErrDuplicateToken)
	})

	t.Run("其他错误视为存储不可用", func(t *testing.T) {
		store, mock := newMockStore(t, "mysql")
		mock.ExpectExec("INSERT INTO aliases").WillReturnError(errors.New("connection refused"))

		err := store.CreateAlias(ctx, alias)
		assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
		assert.NotErrorIs(t, err, domain.ErrDuplicateToken)
	})
}

func TestStore_LookupActiveAlias(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("返回别名和目标邮箱", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		rows := sqlmock.NewRows(append(aliasRowColumns, "email")).
			AddRow("abcd1234", "acc-1", true, 3, nil, created, "user@real.com")
		mock.ExpectQuery(regexp.QuoteMeta("WHERE a.alias = $1 AND a.is_active = TRUE")).
			WithArgs("abcd1234").
			WillReturnRows(rows)

		record, err := store.LookupActiveAlias(ctx, "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, "user@real.com", record.Destination)
		assert.Equal(t, int64(3), record.EmailCount)
		assert.Nil(t, record.LastUsed)
	})

	t.Run("无结果返回不存在", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectQuery("FROM aliases a").
			WithArgs("zzzz9999").
			WillReturnRows(sqlmock.NewRows(append(aliasRowColumns, "email")))

		_, err := store.LookupActiveAlias(ctx, "zzzz9999")
		assert.ErrorIs(t, err, domain.ErrAliasNotFound)
	})
}

func TestStore_TokenExists(t *testing.T) {
	store, mock := newMockStore(t, "mysql")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(1) FROM aliases WHERE alias = ?")).
		WithArgs("abcd1234").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := store.TokenExists(context.Background(), "abcd1234")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStore_ListAliasesByAccount(t *testing.T) {
	store, mock := newMockStore(t, "postgres")
	used := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(aliasRowColumns).
		AddRow("bbbb0002", "acc-1", true, 5, used, used).
		AddRow("aaaa0001", "acc-1", false, 0, nil, used.Add(-time.Hour))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WithArgs("acc-1").
		WillReturnRows(rows)

	aliases, err := store.ListAliasesByAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	assert.Equal(t, "bbbb0002", aliases[0].Token)
	require.NotNil(t, aliases[0].LastUsed)
	assert.Equal(t, used, *aliases[0].LastUsed)
	assert.False(t, aliases[1].IsActive)
}

func TestStore_OwnerScopedMutations(t *testing.T) {
	ctx := context.Background()
	created := time.Now().UTC()

	ownerRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(aliasRowColumns).AddRow("abcd1234", "acc-1", true, 0, nil, created)
	}

	t.Run("删除他人别名返回不存在", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectQuery("FROM aliases WHERE alias").WithArgs("abcd1234").WillReturnRows(ownerRow())

		_, err := store.DeleteAlias(ctx, "abcd1234", "acc-2")
		assert.ErrorIs(t, err, domain.ErrAliasNotFound)
	})

	t.Run("删除自己的别名", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectQuery("FROM aliases WHERE alias").WithArgs("abcd1234").WillReturnRows(ownerRow())
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM aliases WHERE alias = $1 AND user_id = $2")).
			WithArgs("abcd1234", "acc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		removed, err := store.DeleteAlias(ctx, "abcd1234", "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "abcd1234", removed.Token)
	})

	t.Run("禁用自己的别名", func(t *testing.T) {
		store, mock := newMockStore(t, "mysql")
		mock.ExpectQuery("FROM aliases WHERE alias").WithArgs("abcd1234").WillReturnRows(ownerRow())
		mock.ExpectExec(regexp.QuoteMeta("UPDATE aliases SET is_active = ?")).
			WithArgs(false, "abcd1234", "acc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		alias, err := store.SetAliasActive(ctx, "abcd1234", "acc-1", false)
		require.NoError(t, err)
		assert.False(t, alias.IsActive)
	})
}

func TestStore_RecordAliasUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("原子自增", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		fixed := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return fixed }

		mock.ExpectExec(regexp.QuoteMeta("SET email_count = email_count + 1, last_used = $1 WHERE alias = $2")).
			WithArgs(fixed, "abcd1234").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, store.RecordAliasUsage(ctx, "abcd1234"))
	})

	t.Run("别名已删除", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectExec("UPDATE aliases").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, store.RecordAliasUsage(ctx, "abcd1234"), domain.ErrAliasNotFound)
	})
}

func TestStore_Accounts(t *testing.T) {
	ctx := context.Background()

	t.Run("邮箱重复", func(t *testing.T) {
		store, mock := newMockStore(t, "postgres")
		mock.ExpectExec("INSERT INTO users").
			WithArgs("acc-1", "user@real.com", false, sqlmock.AnyArg()).
			WillReturnError(&pq.Error{Code: "23505"})

		err := store.CreateAccount(ctx, &domain.Account{ID: "acc-1", Email: "User@Real.com"})
		assert.ErrorIs(t, err, domain.ErrAccountExists)
	})

	t.Run("按邮箱查询不存在", func(t *testing.T) {
		store, mock := newMockStore(t, "mysql")
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
			WithArgs("ghost@real.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "email_verified", "created_at"}))

		_, err := store.GetAccountByEmail(ctx, "ghost@real.com")
		assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	})
}

func TestStore_DeliveryLogs(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockStore(t, "postgres")
	now := time.Now().UTC()

	entry := &domain.DeliveryLogEntry{
		ID:          "log-1",
		Alias:       "abcd1234",
		Sender:      "a@x.com",
		Subject:     "Hi",
		Destination: "user@real.com",
		Status:      domain.DeliveryDelivered,
		CreatedAt:   now,
	}
	mock.ExpectExec("INSERT INTO email_logs").
		WithArgs("log-1", "abcd1234", "a@x.com", "Hi", "user@real.com", "delivered", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, store.AppendDeliveryLog(ctx, entry))

	rows := sqlmock.NewRows([]string{"id", "alias", "sender_email", "subject", "forwarded_to", "status", "detail", "created_at"}).
		AddRow("log-2", "abcd1234", "b@x.com", "Re", "", "failed", "550 mailbox unavailable", now)
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 20")).WithArgs("abcd1234").WillReturnRows(rows)

	logs, err := store.ListDeliveryLogs(ctx, "abcd1234", 20)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.DeliveryFailed, logs[0].Status)
	assert.Empty(t, logs[0].Destination)
}

func TestStore_Health(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store := NewStoreWithDB(db, "postgres")
	mock.ExpectPing().WillReturnError(errors.New("database is down"))
	assert.Error(t, store.Health(context.Background()))
}

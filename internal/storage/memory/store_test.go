package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datavault/backend/internal/domain"
)

func seedAccount(t *testing.T, store *Store, id, email string) {
	t.Helper()
	require.NoError(t, store.CreateAccount(context.Background(), &domain.Account{
		ID:        id,
		Email:     email,
		CreatedAt: time.Now(),
	}))
}

func TestMemoryStore_AccountOperations(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedAccount(t, store, "acc-1", "user@real.com")

	got, err := store.GetAccountByEmail(ctx, "USER@real.com")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", got.ID)

	err = store.CreateAccount(ctx, &domain.Account{ID: "acc-2", Email: "user@real.com"})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	_, err = store.GetAccount(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestMemoryStore_AliasOperations(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedAccount(t, store, "acc-1", "user@real.com")

	alias := &domain.Alias{Token: "abcd1234", AccountID: "acc-1", IsActive: true, CreatedAt: time.Now()}
	require.NoError(t, store.CreateAlias(ctx, alias))

	t.Run("重复 token", func(t *testing.T) {
		err := store.CreateAlias(ctx, &domain.Alias{Token: "abcd1234", AccountID: "acc-2"})
		assert.ErrorIs(t, err, domain.ErrDuplicateToken)
	})

	t.Run("查询启用别名", func(t *testing.T) {
		record, err := store.LookupActiveAlias(ctx, "abcd1234")
		require.NoError(t, err)
		assert.Equal(t, "user@real.com", record.Destination)
	})

	t.Run("禁用后查询不到", func(t *testing.T) {
		_, err := store.SetAliasActive(ctx, "abcd1234", "acc-1", false)
		require.NoError(t, err)

		_, err = store.LookupActiveAlias(ctx, "abcd1234")
		assert.ErrorIs(t, err, domain.ErrAliasNotFound)

		// 行仍然存在
		exists, err := store.TokenExists(ctx, "abcd1234")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("其他账户操作返回不存在", func(t *testing.T) {
		_, err := store.SetAliasActive(ctx, "abcd1234", "acc-2", true)
		assert.ErrorIs(t, err, domain.ErrAliasNotFound)
		_, err = store.DeleteAlias(ctx, "abcd1234", "acc-2")
		assert.ErrorIs(t, err, domain.ErrAliasNotFound)

		got, err := store.GetAlias(ctx, "abcd1234")
		require.NoError(t, err)
		assert.False(t, got.IsActive)
		assert.Equal(t, "acc-1", got.AccountID)
	})

	t.Run("删除", func(t *testing.T) {
		removed, err := store.DeleteAlias(ctx, "abcd1234", "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "abcd1234", removed.Token)

		_, err = store.GetAlias(ctx, "abcd1234")
		assert.ErrorIs(t, err, domain.ErrAliasNotFound)
	})
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, token := range []string{"aaaa0001", "aaaa0002", "aaaa0003"} {
		require.NoError(t, store.CreateAlias(ctx, &domain.Alias{
			Token:     token,
			AccountID: "acc-1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.CreateAlias(ctx, &domain.Alias{Token: "bbbb0001", AccountID: "acc-2", CreatedAt: base}))

	list, err := store.ListAliasesByAccount(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "aaaa0003", list[0].Token)
	assert.Equal(t, "aaaa0001", list[2].Token)
}

func TestMemoryStore_RecordUsageConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.CreateAlias(ctx, &domain.Alias{Token: "abcd1234", AccountID: "acc-1", IsActive: true}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.RecordAliasUsage(ctx, "abcd1234")
		}()
	}
	wg.Wait()

	got, err := store.GetAlias(ctx, "abcd1234")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got.EmailCount)
	assert.NotNil(t, got.LastUsed)
}

func TestMemoryStore_ConcurrentCreateSameToken(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.CreateAlias(ctx, &domain.Alias{Token: "samesame", AccountID: "acc-1", IsActive: true}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}

func TestMemoryStore_DeliveryLogs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i, status := range []domain.DeliveryStatus{domain.DeliveryDelivered, domain.DeliveryFailed, domain.DeliveryDelivered} {
		require.NoError(t, store.AppendDeliveryLog(ctx, &domain.DeliveryLogEntry{
			ID:     string(rune('a' + i)),
			Alias:  "abcd1234",
			Status: status,
		}))
	}
	require.NoError(t, store.AppendDeliveryLog(ctx, &domain.DeliveryLogEntry{ID: "z", Alias: "other123"}))

	logs, err := store.ListDeliveryLogs(ctx, "abcd1234", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].ID)
	assert.Equal(t, "b", logs[1].ID)
}

func TestRateLimiter(t *testing.T) {
	ctx := context.Background()
	limiter := NewRateLimiter()
	now := time.Now()
	limiter.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		count, err := limiter.IncrementRateLimit(ctx, "ip:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(i), count)
	}

	count, err := limiter.GetRateLimit(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// 窗口过期后重新计数
	now = now.Add(2 * time.Minute)
	count, err = limiter.IncrementRateLimit(ctx, "ip:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

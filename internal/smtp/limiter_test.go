package smtp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConnectionLimiter(t *testing.T) {
	t.Run("并发上限", func(t *testing.T) {
		l := NewConnectionLimiter(2, 100, 100)
		assert.True(t, l.Acquire("10.0.0.1"))
		assert.True(t, l.Acquire("10.0.0.2"))
		assert.False(t, l.Acquire("10.0.0.3"))

		l.Release()
		assert.Equal(t, 1, l.Current())
		assert.True(t, l.Acquire("10.0.0.3"))
	})

	t.Run("单 IP 速率", func(t *testing.T) {
		now := time.Now()
		l := NewConnectionLimiter(0, 1, 2)
		l.now = func() time.Time { return now }

		assert.True(t, l.Acquire("10.0.0.1"))
		assert.True(t, l.Acquire("10.0.0.1"))
		assert.False(t, l.Acquire("10.0.0.1"))
		// 其他 IP 不受影响
		assert.True(t, l.Acquire("10.0.0.2"))

		now = now.Add(time.Second)
		assert.True(t, l.Acquire("10.0.0.1"))
	})

	t.Run("清理过期访客", func(t *testing.T) {
		now := time.Now()
		l := NewConnectionLimiter(0, 1, 1)
		l.now = func() time.Time { return now }
		l.lastGC = now

		l.Acquire("10.0.0.1")
		now = now.Add(2 * visitorTTL)
		l.Acquire("10.0.0.2")

		assert.NotContains(t, l.visitors, "10.0.0.1")
		assert.Contains(t, l.visitors, "10.0.0.2")
	})
}

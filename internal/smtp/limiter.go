package smtp

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ConnectionLimiter SMTP 连接限流器：全局并发上限加单 IP 令牌桶
type ConnectionLimiter struct {
	maxConns int
	limit    rate.Limit
	burst    int

	mu       sync.Mutex
	current  int
	visitors map[string]*visitor
	lastGC   time.Time
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorTTL 超过该时间未出现的 IP 被清理
const visitorTTL = 10 * time.Minute

// NewConnectionLimiter 创建连接限流器
//
// 参数:
//   - maxConns: 最大并发连接数，0 表示不限制
//   - perSecond: 单个 IP 每秒允许的新连接数
//   - burst: 单个 IP 的突发连接数
func NewConnectionLimiter(maxConns int, perSecond float64, burst int) *ConnectionLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ConnectionLimiter{
		maxConns: maxConns,
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		lastGC:   time.Now(),
		now:      time.Now,
	}
}

// Acquire 为来自 ip 的新连接获取许可
func (l *ConnectionLimiter) Acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.gc(now)

	if l.maxConns > 0 && l.current >= l.maxConns {
		return false
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	if !v.limiter.AllowN(now, 1) {
		return false
	}

	l.current++
	return true
}

// Release 释放连接
func (l *ConnectionLimiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current > 0 {
		l.current--
	}
}

// Current 当前连接数
func (l *ConnectionLimiter) Current() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *ConnectionLimiter) gc(now time.Time) {
	if now.Sub(l.lastGC) < visitorTTL {
		return
	}
	for ip, v := range l.visitors {
		if now.Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, ip)
		}
	}
	l.lastGC = now
}

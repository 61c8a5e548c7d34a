// Package aliasgen 生成服务端别名 token。
package aliasgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"datavault/backend/internal/domain"
)

// Alphabet token 字符集，36 个字符
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// MaxAttempts 单次生成的最大尝试次数
const MaxAttempts = 10

// Checker 检查 token 是否已被占用（无论是否启用）。
type Checker interface {
	TokenExists(ctx context.Context, token string) (bool, error)
}

// Generator 生成唯一且通过过滤的 8 位 token。
type Generator struct {
	checker     Checker
	filter      Filter
	random      io.Reader
	maxAttempts int
}

// Option 生成器配置项
type Option func(*Generator)

// WithFilter 替换过滤策略
func WithFilter(f Filter) Option {
	return func(g *Generator) { g.filter = f }
}

// WithRandom 替换随机源，仅用于测试
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// WithMaxAttempts 修改尝试上限
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// New 创建生成器
func New(checker Checker, opts ...Option) *Generator {
	g := &Generator{
		checker:     checker,
		filter:      NewWordFilter(),
		random:      rand.Reader,
		maxAttempts: MaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate 返回一个未被占用的 token。
// 超过尝试上限时返回 domain.ErrGenerationExhausted。
func (g *Generator) Generate(ctx context.Context) (string, error) {
	token, _, err := g.GenerateWithin(ctx, g.maxAttempts)
	return token, err
}

// MaxAttempts 单次创建可用的候选总数
func (g *Generator) MaxAttempts() int { return g.maxAttempts }

// GenerateWithin 最多尝试 budget 个候选，返回 token 与实际消耗的次数。
// 被过滤器拒绝的候选同样计入消耗。
func (g *Generator) GenerateWithin(ctx context.Context, budget int) (string, int, error) {
	used := 0
	for used < budget {
		used++
		token, err := g.candidate()
		if err != nil {
			return "", used, err
		}
		if !g.filter.Allowed(token) {
			continue
		}

		exists, err := g.checker.TokenExists(ctx, token)
		if err != nil {
			return "", used, fmt.Errorf("%w: check alias token: %v", domain.ErrStorageUnavailable, err)
		}
		if !exists {
			return token, used, nil
		}
	}
	return "", used, domain.ErrGenerationExhausted
}

// candidate 生成一个未经检查的候选 token
func (g *Generator) candidate() (string, error) {
	return Random(g.random, domain.TokenLength)
}

// Random 从随机源读取 n 个字节并映射到 Alphabet。
func Random(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(buf), nil
}

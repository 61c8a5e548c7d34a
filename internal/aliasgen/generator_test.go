package aliasgen

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datavault/backend/internal/domain"
)

type fakeChecker struct {
	mu     sync.Mutex
	taken  map[string]bool
	err    error
	checks []string
}

func (f *fakeChecker) TokenExists(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, token)
	if f.err != nil {
		return false, f.err
	}
	return f.taken[token], nil
}

// seq 把 token 序列转成随机字节流，每个字符对应其在 Alphabet 中的下标
func seq(tokens ...string) *bytes.Reader {
	var buf []byte
	for _, tok := range tokens {
		for _, c := range tok {
			buf = append(buf, byte(strings.IndexRune(Alphabet, c)))
		}
	}
	return bytes.NewReader(buf)
}

func TestGenerate_Properties(t *testing.T) {
	gen := New(&fakeChecker{taken: map[string]bool{}})
	filter := NewWordFilter()

	for i := 0; i < 500; i++ {
		token, err := gen.Generate(context.Background())
		require.NoError(t, err)
		assert.Len(t, token, domain.TokenLength)
		for _, c := range token {
			assert.True(t, strings.ContainsRune(Alphabet, c), "unexpected char %q", c)
		}
		assert.True(t, filter.Allowed(token))
	}
}

func TestGenerate_RerollsDenylisted(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{}}
	gen := New(checker, WithRandom(seq("killabcd", "abcd1234")))

	token, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abcd1234", token)
	// 被屏蔽的候选不会查询存储
	assert.Equal(t, []string{"abcd1234"}, checker.checks)
}

func TestGenerate_RerollsOnCollision(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"aaaa1111": true}}
	gen := New(checker, WithRandom(seq("aaaa1111", "bbbb2222")))

	token, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222", token)
	assert.Equal(t, []string{"aaaa1111", "bbbb2222"}, checker.checks)
}

func TestGenerate_Exhausted(t *testing.T) {
	tokens := make([]string, MaxAttempts)
	taken := map[string]bool{}
	for i := range tokens {
		tokens[i] = strings.Repeat(string(Alphabet[i]), domain.TokenLength)
		taken[tokens[i]] = true
	}
	checker := &fakeChecker{taken: taken}
	gen := New(checker, WithRandom(seq(tokens...)))

	_, err := gen.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrGenerationExhausted)
	assert.Len(t, checker.checks, MaxAttempts)
}

func TestGenerateWithin_ReportsUsage(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"aaaa1111": true}}
	gen := New(checker, WithRandom(seq("killabcd", "aaaa1111", "bbbb2222")))

	token, used, err := gen.GenerateWithin(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222", token)
	assert.Equal(t, 3, used)
}

func TestGenerateWithin_StopsAtBudget(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{"aaaa1111": true, "bbbb2222": true}}
	gen := New(checker, WithRandom(seq("aaaa1111", "bbbb2222", "cccc3333")))

	_, used, err := gen.GenerateWithin(context.Background(), 2)
	assert.ErrorIs(t, err, domain.ErrGenerationExhausted)
	assert.Equal(t, 2, used)
	assert.Equal(t, []string{"aaaa1111", "bbbb2222"}, checker.checks)

	_, used, err = gen.GenerateWithin(context.Background(), 0)
	assert.ErrorIs(t, err, domain.ErrGenerationExhausted)
	assert.Zero(t, used)
}

func TestGenerate_CheckerError(t *testing.T) {
	gen := New(&fakeChecker{err: errors.New("connection refused")})

	_, err := gen.Generate(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestGenerate_CustomFilter(t *testing.T) {
	checker := &fakeChecker{taken: map[string]bool{}}
	noDigitsFirst := FilterFunc(func(token string) bool {
		return token[0] >= 'a' && token[0] <= 'z'
	})
	gen := New(checker, WithFilter(noDigitsFirst), WithRandom(seq("1bcdefgh", "abcdefgh")))

	token, err := gen.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh", token)
}

func TestWordFilter(t *testing.T) {
	f := NewWordFilter()
	assert.False(t, f.Allowed("xxkillxx"))
	assert.False(t, f.Allowed("porn1234"))
	assert.True(t, f.Allowed("abcd1234"))
	// 大小写敏感
	assert.True(t, NewWordFilter("KILL").Allowed("xxkillxx"))
}

package smtp

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
)

type fakeResolver struct {
	mu       sync.Mutex
	received []*domain.RawInbound
	err      error
}

func (f *fakeResolver) ResolveRaw(_ context.Context, msg *domain.RawInbound) (*domain.Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, msg)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Resolution{Alias: domain.TokenFromAddress(msg.Recipients[0]), MessageID: "id@datavlt.io"}, nil
}

func startBackend(t *testing.T, resolver Resolver, limiter *ConnectionLimiter) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	be := NewBackend("datavlt.io", resolver, limiter, zap.NewNop())
	srv := NewServer(be, ln.Addr().String(), "mx.datavlt.io", 1<<20)
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })
	return ln.Addr().String()
}

func dialClient(t *testing.T, addr string) *gosmtp.Client {
	t.Helper()
	c, err := gosmtp.Dial(addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

const testMail = "From: alice@shop.com\r\nTo: abcd1234@datavlt.io\r\nSubject: Hi\r\n\r\nBody\r\n"

func sendData(t *testing.T, c *gosmtp.Client, body string) error {
	t.Helper()
	w, err := c.Data()
	require.NoError(t, err)
	_, err = w.Write([]byte(body))
	require.NoError(t, err)
	return w.Close()
}

func smtpCode(err error) int {
	if smtpErr, ok := err.(*gosmtp.SMTPError); ok {
		return smtpErr.Code
	}
	return 0
}

func TestBackend_Delivery(t *testing.T) {
	resolver := &fakeResolver{}
	addr := startBackend(t, resolver, nil)
	c := dialClient(t, addr)

	require.NoError(t, c.Mail("alice@shop.com", nil))
	require.NoError(t, c.Rcpt("ABCD1234@datavlt.io", nil))
	require.NoError(t, sendData(t, c, testMail))

	resolver.mu.Lock()
	defer resolver.mu.Unlock()
	require.Len(t, resolver.received, 1)
	got := resolver.received[0]
	assert.Equal(t, []string{"abcd1234@datavlt.io"}, got.Recipients)
	assert.Equal(t, "alice@shop.com", got.From)
	assert.True(t, strings.Contains(string(got.Raw), "Subject: Hi"))
}

func TestBackend_RcptPolicy(t *testing.T) {
	addr := startBackend(t, &fakeResolver{}, nil)

	tests := []struct {
		name string
		rcpt string
		code int
	}{
		{"外部域名拒绝中继", "someone@gmail.com", 550},
		{"token 长度错误", "short@datavlt.io", 550},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dialClient(t, addr)
			require.NoError(t, c.Mail("alice@shop.com", nil))
			err := c.Rcpt(tt.rcpt, nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, smtpCode(err))
		})
	}

	t.Run("只接受一个收件人", func(t *testing.T) {
		c := dialClient(t, addr)
		require.NoError(t, c.Mail("alice@shop.com", nil))
		require.NoError(t, c.Rcpt("abcd1234@datavlt.io", nil))
		assert.Error(t, c.Rcpt("efgh5678@datavlt.io", nil))
	})
}

func TestBackend_ResolverErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"别名不存在", domain.ErrAliasNotFound, 550},
		{"别名已禁用", domain.ErrAliasDisabled, 550},
		{"转发失败", domain.ErrForwardingFailed, 451},
		{"存储不可用", domain.ErrStorageUnavailable, 451},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := startBackend(t, &fakeResolver{err: tt.err}, nil)
			c := dialClient(t, addr)
			require.NoError(t, c.Mail("alice@shop.com", nil))
			require.NoError(t, c.Rcpt("abcd1234@datavlt.io", nil))

			err := sendData(t, c, testMail)
			require.Error(t, err)
			assert.Equal(t, tt.code, smtpCode(err))
		})
	}
}

func TestBackend_ConnectionLimit(t *testing.T) {
	limiter := NewConnectionLimiter(1, 100, 100)
	addr := startBackend(t, &fakeResolver{}, limiter)

	first := dialClient(t, addr)
	require.NoError(t, first.Noop())

	second, err := gosmtp.Dial(addr)
	if err == nil {
		defer second.Close()
		err = second.Noop()
	}
	assert.Error(t, err)
}

func TestToSMTPError(t *testing.T) {
	err := toSMTPError(assert.AnError)
	assert.Equal(t, 451, smtpCode(err))
}

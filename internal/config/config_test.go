package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-development-32-chars-long-at-least"

func TestLoad(t *testing.T) {
	t.Run("加载默认配置成功", func(t *testing.T) {
		t.Setenv("DATAVAULT_JWT_SECRET", testSecret)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "datavlt.io", cfg.Forwarding.Domain)
		assert.Equal(t, "DataVault <noreply@datavlt.io>", cfg.Forwarding.FromHeader())
		assert.Equal(t, "smtp", cfg.Mail.Transport)
		assert.Equal(t, 30*time.Second, cfg.Mail.Timeout)
		assert.False(t, cfg.SMTP.Enabled)
		assert.Equal(t, "datavlt.io", cfg.SMTP.Domain)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.Empty(t, cfg.Database.Type)
		assert.Equal(t, 30*24*time.Hour, cfg.JWT.Expiry)
		assert.Equal(t, int64(100), cfg.RateLimit.APIRequests)
		assert.Equal(t, 15*time.Minute, cfg.RateLimit.APIWindow)
		assert.Equal(t, int64(1000), cfg.RateLimit.WebhookRequests)
		assert.Equal(t, time.Minute, cfg.RateLimit.WebhookWindow)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		t.Setenv("DATAVAULT_JWT_SECRET", testSecret)
		t.Setenv("DATAVAULT_SERVER_PORT", "9090")
		t.Setenv("DATAVAULT_FORWARDING_DOMAIN", "Relay.Example.com")
		t.Setenv("DATAVAULT_MAIL_TRANSPORT", "ses")
		t.Setenv("DATAVAULT_MAIL_SES_REGION", "eu-west-1")
		t.Setenv("DATAVAULT_DATABASE_TYPE", "postgres")
		t.Setenv("DATAVAULT_DATABASE_DSN", "postgres://u:p@localhost/db")
		t.Setenv("DATAVAULT_CORS_ALLOWED_ORIGINS", "https://a.com, https://b.com")
		t.Setenv("DATAVAULT_RATELIMIT_API_WINDOW", "1m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "relay.example.com", cfg.Forwarding.Domain)
		assert.Equal(t, "ses", cfg.Mail.Transport)
		assert.Equal(t, "eu-west-1", cfg.Mail.SES.Region)
		assert.Equal(t, "postgres", cfg.Database.Type)
		assert.Equal(t, []string{"https://a.com", "https://b.com"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, time.Minute, cfg.RateLimit.APIWindow)
	})

	t.Run("拒绝默认 JWT 密钥", func(t *testing.T) {
		t.Setenv("DATAVAULT_JWT_SECRET", "change-me-in-production")
		_, err := Load()
		assert.ErrorContains(t, err, "SECURITY ERROR")
	})

	t.Run("JWT 密钥过短", func(t *testing.T) {
		t.Setenv("DATAVAULT_JWT_SECRET", "short")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("未知传输类型", func(t *testing.T) {
		t.Setenv("DATAVAULT_JWT_SECRET", testSecret)
		t.Setenv("DATAVAULT_MAIL_TRANSPORT", "pigeon")
		_, err := Load()
		assert.ErrorContains(t, err, "Transport")
	})

	t.Run("数据库类型缺少 DSN", func(t *testing.T) {
		t.Setenv("DATAVAULT_JWT_SECRET", testSecret)
		t.Setenv("DATAVAULT_DATABASE_TYPE", "mysql")
		_, err := Load()
		assert.ErrorContains(t, err, "DSN")
	})
}

func TestParseList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"单项", "a", []string{"a"}},
		{"多项带空格", " a , b ,c ", []string{"a", "b", "c"}},
		{"空项被忽略", "a,,b,", []string{"a", "b"}},
		{"空字符串", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseList(tt.input))
		})
	}
}

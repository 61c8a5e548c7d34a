// Package mailer 负责出站邮件的组装与投递。
//
// 转发引擎只依赖 Sender 接口，具体传输由 mail.transport 选择：
// smtp（中继服务器）、ses（AWS SES v2）或 log（开发环境，只记录不发送）。
package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"datavault/backend/internal/config"
	"datavault/backend/internal/domain"
)

// Header 附加的邮件头，按添加顺序写出
type Header struct {
	Key   string
	Value string
}

// Message 待发送的出站邮件
type Message struct {
	From        string // 完整 From，如 "DataVault <noreply@datavlt.io>"
	To          string
	ReplyTo     string
	Subject     string
	Text        string
	HTML        string
	Headers     []Header
	Attachments []*domain.Attachment
}

// Receipt 投递回执
type Receipt struct {
	MessageID string
	Transport string
}

// Sender 出站传输
type Sender interface {
	Send(ctx context.Context, msg *Message) (*Receipt, error)
	Name() string
}

// Verifier 可选能力：检查传输是否可用，用于 /webhook/test-smtp 和就绪检查
type Verifier interface {
	Verify(ctx context.Context) error
}

// New 根据配置创建出站传输
func New(ctx context.Context, cfg config.MailConfig, log *zap.Logger) (Sender, error) {
	switch cfg.Transport {
	case "smtp":
		return NewSMTPSender(SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			TLSMode:  cfg.SMTP.TLSMode,
			Timeout:  cfg.Timeout,
		}), nil
	case "ses":
		return NewSESSender(ctx, cfg.SES)
	case "log":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("unsupported mail transport: %q", cfg.Transport)
	}
}

// WithTimeout 为单次发送加上超时，timeout 为 0 时不限制
func WithTimeout(sender Sender, timeout time.Duration) Sender {
	if timeout <= 0 {
		return sender
	}
	return &timeoutSender{Sender: sender, timeout: timeout}
}

type timeoutSender struct {
	Sender
	timeout time.Duration
}

func (t *timeoutSender) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Sender.Send(ctx, msg)
}

// Verify 透传被包装传输的 Verify
func (t *timeoutSender) Verify(ctx context.Context) error {
	if v, ok := t.Sender.(Verifier); ok {
		ctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()
		return v.Verify(ctx)
	}
	return nil
}

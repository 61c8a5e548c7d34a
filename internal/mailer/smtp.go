package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	gosmtp "github.com/emersion/go-smtp"
)

// SMTPConfig 出站 SMTP 中继参数
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	TLSMode  string // none, starttls, tls
	Timeout  time.Duration

	// TLSConfig 为空时按 Host 校验证书
	TLSConfig *tls.Config
}

// SMTPSender 通过 SMTP 中继投递，每封邮件一个连接，不做重试
type SMTPSender struct {
	cfg SMTPConfig
}

// NewSMTPSender 创建 SMTP 传输
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

// Name 传输名称
func (s *SMTPSender) Name() string { return "smtp" }

func (s *SMTPSender) addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	if s.cfg.TLSConfig != nil {
		return s.cfg.TLSConfig
	}
	return &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}
}

// dial 建立连接并完成 TLS 与认证，连接截止时间取 ctx 与超时中较早者
func (s *SMTPSender) dial(ctx context.Context) (*gosmtp.Client, error) {
	deadline := time.Now().Add(s.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var conn net.Conn
	var err error
	dialer := &net.Dialer{Deadline: deadline}
	if s.cfg.TLSMode == "tls" {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig()}
		conn, err = tlsDialer.DialContext(ctx, "tcp", s.addr())
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", s.addr())
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.addr(), err)
	}
	_ = conn.SetDeadline(deadline)

	var c *gosmtp.Client
	if s.cfg.TLSMode == "starttls" {
		c, err = gosmtp.NewClientStartTLS(conn, s.tlsConfig())
		if err != nil {
			return nil, fmt.Errorf("STARTTLS: %w", err)
		}
	} else {
		c = gosmtp.NewClient(conn)
	}

	if s.cfg.Username != "" {
		auth := sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)
		if err := c.Auth(auth); err != nil {
			c.Close()
			return nil, fmt.Errorf("AUTH: %w", err)
		}
	}
	return c, nil
}

// Send 投递一封邮件
func (s *SMTPSender) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	raw, messageID, err := Compose(msg)
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}

	from, err := envelopeAddress(msg.From)
	if err != nil {
		return nil, err
	}
	to, err := envelopeAddress(msg.To)
	if err != nil {
		return nil, err
	}

	c, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.Mail(from, nil); err != nil {
		return nil, fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to, nil); err != nil {
		return nil, fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return nil, fmt.Errorf("DATA: %w", err)
	}
	if _, err := io.Copy(w, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("DATA close: %w", err)
	}
	_ = c.Quit()

	return &Receipt{MessageID: messageID, Transport: s.Name()}, nil
}

// Verify 连接、认证后执行 NOOP
func (s *SMTPSender) Verify(ctx context.Context) error {
	c, err := s.dial(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Noop(); err != nil {
		return fmt.Errorf("NOOP: %w", err)
	}
	return c.Quit()
}

// envelopeAddress 从 "Name <addr>" 中取出信封地址
func envelopeAddress(value string) (string, error) {
	addr, err := mail.ParseAddress(value)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", value, err)
	}
	return addr.Address, nil
}

package service

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"go.uber.org/zap"

	"datavault/backend/internal/config"
	"datavault/backend/internal/domain"
	"datavault/backend/internal/mailer"
	"datavault/backend/internal/monitoring"
)

// 转发邮件附加头
const (
	HeaderAlias        = "X-DataVault-Alias"
	HeaderOriginalTo   = "X-DataVault-Original-To"
	HeaderOriginalFrom = "X-Original-From"
)

// DeliveryPublisher 发布转发事件给在线客户端
type DeliveryPublisher interface {
	PublishDelivery(ctx context.Context, event domain.DeliveryEvent) error
}

// ForwardRequest 一次转发请求
type ForwardRequest struct {
	Alias       string
	AccountID   string
	Destination string
	OriginalTo  string
	From        string
	Subject     string
	Text        string
	HTML        string
	Attachments []*domain.Attachment
}

// Forwarder 将入站邮件重新封装后发送到账户邮箱
type Forwarder struct {
	sender     mailer.Sender
	logs       *DeliveryLog
	fromHeader string
	publisher  DeliveryPublisher
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

// ForwarderOption 转发器配置项
type ForwarderOption func(*Forwarder)

// WithPublisher 设置事件发布者
func WithPublisher(p DeliveryPublisher) ForwarderOption {
	return func(f *Forwarder) { f.publisher = p }
}

// WithMetrics 设置监控指标
func WithMetrics(m *monitoring.Metrics) ForwarderOption {
	return func(f *Forwarder) { f.metrics = m }
}

// NewForwarder 创建转发器
func NewForwarder(sender mailer.Sender, logs *DeliveryLog, cfg config.ForwardingConfig, logger *zap.Logger, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		sender:     sender,
		logs:       logs,
		fromHeader: cfg.FromHeader(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward 发送一次，不重试。无论成败都追加投递日志。
func (f *Forwarder) Forward(ctx context.Context, req ForwardRequest) (*mailer.Receipt, error) {
	msg := f.buildMessage(req)

	start := time.Now()
	receipt, err := f.sender.Send(ctx, msg)
	elapsed := time.Since(start)

	if err != nil {
		f.metrics.RecordForward(f.sender.Name(), string(domain.DeliveryFailed), elapsed)
		entry := f.logs.Append(ctx, req.Alias, req.From, msg.Subject, "", domain.DeliveryFailed, err.Error())
		f.publish(ctx, req.AccountID, entry, "")
		f.logger.Error("Email forwarding failed",
			zap.String("alias", req.Alias),
			zap.String("from", req.From),
			zap.String("transport", f.sender.Name()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrForwardingFailed, err)
	}

	f.metrics.RecordForward(f.sender.Name(), string(domain.DeliveryDelivered), elapsed)
	for _, att := range req.Attachments {
		f.metrics.RecordAttachmentSize(att.Size())
	}
	entry := f.logs.Append(ctx, req.Alias, req.From, msg.Subject, req.Destination, domain.DeliveryDelivered, "")
	f.publish(ctx, req.AccountID, entry, receipt.MessageID)

	f.logger.Info("Email forwarded",
		zap.String("alias", req.Alias),
		zap.String("message_id", receipt.MessageID),
		zap.String("transport", receipt.Transport),
		zap.Duration("duration", elapsed),
	)
	return receipt, nil
}

func (f *Forwarder) buildMessage(req ForwardRequest) *mailer.Message {
	subject := req.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "No Subject"
	}
	text := req.Text
	if text == "" {
		text = "Email forwarded from " + req.From
	}
	body := req.HTML
	if body == "" {
		body = "<p>Email forwarded from " + html.EscapeString(req.From) + "</p>"
	}

	return &mailer.Message{
		From:    f.fromHeader,
		To:      req.Destination,
		ReplyTo: req.From,
		Subject: subject,
		Text:    text,
		HTML:    body,
		Headers: []mailer.Header{
			{Key: HeaderAlias, Value: req.Alias},
			{Key: HeaderOriginalTo, Value: req.OriginalTo},
			{Key: HeaderOriginalFrom, Value: req.From},
		},
		Attachments: req.Attachments,
	}
}

func (f *Forwarder) publish(ctx context.Context, accountID string, entry *domain.DeliveryLogEntry, messageID string) {
	if f.publisher == nil || accountID == "" {
		return
	}
	event := domain.DeliveryEvent{AccountID: accountID, Entry: *entry, MessageID: messageID}
	if err := f.publisher.PublishDelivery(ctx, event); err != nil {
		f.logger.Warn("Failed to publish delivery event", zap.String("alias", entry.Alias), zap.Error(err))
	}
}

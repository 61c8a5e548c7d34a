package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"datavault/backend/internal/domain"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/smtp"
	"datavault/backend/internal/storage"
)

// rawPreviewBytes 原始邮件解析失败时，正文中保留的原文长度
const rawPreviewBytes = 1000

// 解析终态，用于指标标签
const (
	outcomeForwarded = "forwarded"
	outcomeNotFound  = "not_found"
	outcomeDisabled  = "disabled"
	outcomeMalformed = "malformed"
	outcomeFailed    = "failed"
)

// Resolver 将入站邮件解析到别名所属账户并交给转发器
type Resolver struct {
	aliases   storage.AliasRepository
	forwarder *Forwarder
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewResolver 创建解析器
func NewResolver(aliases storage.AliasRepository, forwarder *Forwarder, metrics *monitoring.Metrics, logger *zap.Logger) *Resolver {
	return &Resolver{
		aliases:   aliases,
		forwarder: forwarder,
		metrics:   metrics,
		logger:    logger,
	}
}

// Resolve 处理一封已拆分的邮件。
// 多收件人时只处理第一个。格式错误的别名不查库也不写日志。
func (r *Resolver) Resolve(ctx context.Context, msg *domain.InboundMessage) (*domain.Resolution, error) {
	recipient := msg.Recipient()
	token := domain.TokenFromAddress(recipient)
	if !domain.ValidToken(token) {
		r.metrics.RecordResolution(outcomeMalformed)
		return nil, domain.ErrInvalidAliasFormat
	}

	record, err := r.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	receipt, err := r.forwarder.Forward(ctx, ForwardRequest{
		Alias:       token,
		AccountID:   record.AccountID,
		Destination: record.Destination,
		OriginalTo:  recipient,
		From:        msg.From,
		Subject:     msg.Subject,
		Text:        msg.Text,
		HTML:        msg.HTML,
		Attachments: msg.Attachments,
	})
	if err != nil {
		r.metrics.RecordResolution(outcomeFailed)
		return nil, err
	}

	if err := r.aliases.RecordAliasUsage(ctx, token); err != nil {
		r.logger.Warn("Failed to record alias usage", zap.String("alias", token), zap.Error(err))
	}
	r.metrics.RecordResolution(outcomeForwarded)

	return &domain.Resolution{
		Alias:       token,
		Destination: record.Destination,
		MessageID:   receipt.MessageID,
	}, nil
}

// ResolveRaw 解析原始 MIME 后处理。
// 解析失败时降级为占位内容：发件人加原文前 1000 字节。
func (r *Resolver) ResolveRaw(ctx context.Context, raw *domain.RawInbound) (*domain.Resolution, error) {
	msg, err := smtp.ParseMessage(raw.Raw)
	if err != nil {
		r.logger.Warn("Failed to parse raw email, using placeholder body",
			zap.String("from", raw.From),
			zap.Int("size", len(raw.Raw)),
			zap.Error(err),
		)
		msg = placeholderMessage(raw)
	}

	// 信封地址优先于邮件头
	if len(raw.Recipients) > 0 {
		msg.Recipients = raw.Recipients
	}
	if raw.From != "" {
		msg.From = raw.From
	}
	if msg.Subject == "" {
		msg.Subject = raw.Subject
	}
	return r.Resolve(ctx, msg)
}

func placeholderMessage(raw *domain.RawInbound) *domain.InboundMessage {
	preview := raw.Raw
	if len(preview) > rawPreviewBytes {
		preview = preview[:rawPreviewBytes]
	}
	text := "Email from " + raw.From + "\n\n" + string(preview)
	return &domain.InboundMessage{
		Recipients: raw.Recipients,
		From:       raw.From,
		Subject:    raw.Subject,
		Text:       text,
		HTML:       strings.ReplaceAll(text, "\n", "<br>"),
	}
}

// lookup 查找启用中的别名，未命中时区分“已停用”和“不存在”
func (r *Resolver) lookup(ctx context.Context, token string) (*domain.AliasRecord, error) {
	record, err := r.aliases.LookupActiveAlias(ctx, token)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, domain.ErrAliasNotFound) {
		return nil, err
	}

	if _, getErr := r.aliases.GetAlias(ctx, token); getErr == nil {
		r.metrics.RecordResolution(outcomeDisabled)
		return nil, domain.ErrAliasDisabled
	} else if !errors.Is(getErr, domain.ErrAliasNotFound) {
		return nil, getErr
	}

	r.metrics.RecordResolution(outcomeNotFound)
	return nil, domain.ErrAliasNotFound
}

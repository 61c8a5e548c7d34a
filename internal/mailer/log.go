package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// LogSender 开发环境传输：组装邮件后只记录日志
type LogSender struct {
	log *zap.Logger
}

// NewLogSender 创建日志传输
func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

// Name 传输名称
func (s *LogSender) Name() string { return "log" }

// Send 记录邮件摘要
func (s *LogSender) Send(_ context.Context, msg *Message) (*Receipt, error) {
	raw, messageID, err := Compose(msg)
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}
	s.log.Info("outbound mail (log transport)",
		zap.String("message_id", messageID),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)),
		zap.Int("size", len(raw)),
	)
	return &Receipt{MessageID: messageID, Transport: s.Name()}, nil
}

// Verify 始终可用
func (s *LogSender) Verify(context.Context) error { return nil }

package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"datavault/backend/internal/config"
)

// SendEmailAPI SES v2 发送接口，测试时替换为 mock
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// accountAPI 可选能力，用于 Verify
type accountAPI interface {
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

// SESSender 通过 AWS SES v2 发送原始 MIME 邮件，单次尝试
type SESSender struct {
	client SendEmailAPI
}

// NewSESSender 加载 AWS 配置并创建 SES 客户端。
// 未配置访问密钥时使用默认凭证链（环境变量、共享配置、实例角色）。
func NewSESSender(ctx context.Context, cfg config.SESConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewSESSenderWithClient(client), nil
}

// NewSESSenderWithClient 使用指定客户端创建
func NewSESSenderWithClient(client SendEmailAPI) *SESSender {
	return &SESSender{client: client}
}

// Name 传输名称
func (s *SESSender) Name() string { return "ses" }

// Send 组装原始邮件并调用 SendEmail
func (s *SESSender) Send(ctx context.Context, msg *Message) (*Receipt, error) {
	raw, messageID, err := Compose(msg)
	if err != nil {
		return nil, fmt.Errorf("compose message: %w", err)
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("SES send: %w", err)
	}

	if out != nil && out.MessageId != nil {
		messageID = aws.ToString(out.MessageId)
	}
	return &Receipt{MessageID: messageID, Transport: s.Name()}, nil
}

// Verify 查询账户发送状态
func (s *SESSender) Verify(ctx context.Context) error {
	api, ok := s.client.(accountAPI)
	if !ok {
		return nil
	}
	out, err := api.GetAccount(ctx, &sesv2.GetAccountInput{})
	if err != nil {
		return fmt.Errorf("SES account check: %w", err)
	}
	if !out.SendingEnabled {
		return fmt.Errorf("SES sending is disabled for this account")
	}
	return nil
}

package smtp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
)

// Resolver 把一封原始邮件解析并转发到别名所属账户
type Resolver interface {
	ResolveRaw(ctx context.Context, msg *domain.RawInbound) (*domain.Resolution, error)
}

// Backend 实现 go-smtp 的 Backend 接口。
//
// 只接收发往转发域名下别名的邮件，不提供中继：
// 收件人域名不匹配或本地部分不是 8 位 token 时在 RCPT 阶段返回 550。
// 每个事务只接受一个收件人，不做多收件人分发。
type Backend struct {
	domain   string
	resolver Resolver
	limiter  *ConnectionLimiter
	log      *zap.Logger
	timeout  time.Duration
}

// NewBackend 创建 SMTP Backend
func NewBackend(forwardingDomain string, resolver Resolver, limiter *ConnectionLimiter, log *zap.Logger) *Backend {
	return &Backend{
		domain:   strings.ToLower(forwardingDomain),
		resolver: resolver,
		limiter:  limiter,
		log:      log,
		timeout:  2 * time.Minute,
	}
}

// NewServer 创建配置好的 go-smtp 服务器
func NewServer(be *Backend, addr, hostname string, maxMessageBytes int64) *gosmtp.Server {
	srv := gosmtp.NewServer(be)
	srv.Addr = addr
	srv.Domain = hostname
	srv.ReadTimeout = 60 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.MaxMessageBytes = maxMessageBytes
	srv.MaxRecipients = 1
	srv.AllowInsecureAuth = false
	return srv
}

// NewSession 创建新的 SMTP 会话，超出连接限制时返回 421
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	ip := remoteIP(c)
	if b.limiter != nil {
		if !b.limiter.Acquire(ip) {
			b.log.Warn("smtp connection rejected by limiter", zap.String("ip", ip))
			return nil, &gosmtp.SMTPError{
				Code:         421,
				EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
				Message:      "too many connections, try again later",
			}
		}
	}
	return &session{backend: b, remoteIP: ip}, nil
}

func remoteIP(c *gosmtp.Conn) string {
	if c == nil || c.Conn() == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(c.Conn().RemoteAddr().String())
	if err != nil {
		return c.Conn().RemoteAddr().String()
	}
	return host
}

type session struct {
	backend   *Backend
	remoteIP  string
	from      string
	recipient string
}

// Mail 处理 MAIL 命令
func (s *session) Mail(from string, _ *gosmtp.MailOptions) error {
	s.from = from
	return nil
}

// Rcpt 只接受转发域名下形如 8 位 token 的地址
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	if s.recipient != "" {
		return &gosmtp.SMTPError{
			Code:         452,
			EnhancedCode: gosmtp.EnhancedCode{4, 5, 3},
			Message:      "only one recipient per message",
		}
	}

	addr := normalizeAddress(to)
	local, host, ok := strings.Cut(addr, "@")
	if !ok || host != s.backend.domain {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied",
		}
	}
	if !domain.ValidToken(local) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "invalid alias format",
		}
	}

	s.recipient = addr
	return nil
}

// Data 读取邮件并交给 Resolver
func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.timeout)
	defer cancel()

	res, err := s.backend.resolver.ResolveRaw(ctx, &domain.RawInbound{
		Recipients: []string{s.recipient},
		From:       s.from,
		Raw:        raw,
	})
	if err != nil {
		s.backend.log.Info("smtp delivery rejected",
			zap.String("recipient", s.recipient),
			zap.String("from", s.from),
			zap.String("ip", s.remoteIP),
			zap.Error(err),
		)
		return toSMTPError(err)
	}

	s.backend.log.Debug("smtp message forwarded",
		zap.String("alias", res.Alias),
		zap.String("message_id", res.MessageID),
	)
	return nil
}

// toSMTPError 把解析错误映射为 SMTP 应答
func toSMTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAliasNotFound):
		return &gosmtp.SMTPError{Code: 550, EnhancedCode: gosmtp.EnhancedCode{5, 1, 1}, Message: "alias not found"}
	case errors.Is(err, domain.ErrAliasDisabled):
		return &gosmtp.SMTPError{Code: 550, EnhancedCode: gosmtp.EnhancedCode{5, 2, 1}, Message: "alias disabled"}
	case errors.Is(err, domain.ErrInvalidAliasFormat):
		return &gosmtp.SMTPError{Code: 550, EnhancedCode: gosmtp.EnhancedCode{5, 1, 3}, Message: "invalid alias format"}
	case errors.Is(err, domain.ErrForwardingFailed), errors.Is(err, domain.ErrStorageUnavailable):
		return &gosmtp.SMTPError{Code: 451, EnhancedCode: gosmtp.EnhancedCode{4, 3, 0}, Message: "temporary failure, try again later"}
	default:
		return &gosmtp.SMTPError{Code: 451, EnhancedCode: gosmtp.EnhancedCode{4, 0, 0}, Message: "local error"}
	}
}

// Reset 重置状态
func (s *session) Reset() {
	s.from = ""
	s.recipient = ""
}

// Logout 会话结束，归还连接许可
func (s *session) Logout() error {
	if s.backend.limiter != nil {
		s.backend.limiter.Release()
	}
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}

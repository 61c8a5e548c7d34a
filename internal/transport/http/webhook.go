package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"datavault/backend/internal/domain"
	"datavault/backend/internal/mailer"
	"datavault/backend/internal/monitoring"
	"datavault/backend/internal/service"
)

// HeaderCloudflareEmail 标记 Cloudflare Email Worker 推送的原始邮件
const HeaderCloudflareEmail = "X-Cloudflare-Email"

const verifyTimeout = 10 * time.Second

// WebhookHandler 接收邮件服务商推送的入站邮件
type WebhookHandler struct {
	resolver *service.Resolver
	sender   mailer.Sender
	metrics  *monitoring.Metrics
	log      *zap.Logger
}

// NewWebhookHandler 创建 webhook 处理器
func NewWebhookHandler(resolver *service.Resolver, sender mailer.Sender, metrics *monitoring.Metrics, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{resolver: resolver, sender: sender, metrics: metrics, log: log}
}

// recipientList 兼容字符串和字符串数组两种写法
type recipientList []string

func (r *recipientList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			*r = recipientList{single}
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	out := make(recipientList, 0, len(many))
	for _, addr := range many {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	*r = out
	return nil
}

// inboundPayload 预拆分的邮件，附件 content 为 base64
type inboundPayload struct {
	To          recipientList        `json:"to"`
	From        string               `json:"from"`
	Subject     string               `json:"subject"`
	ContentText string               `json:"content-plain"`
	TextContent string               `json:"textContent"`
	ContentHTML string               `json:"content-html"`
	HTMLContent string               `json:"htmlContent"`
	Attachments []*domain.Attachment `json:"attachments"`
}

// rawPayload Cloudflare Worker 推送的原始邮件
type rawPayload struct {
	To        recipientList     `json:"to"`
	From      string            `json:"from"`
	Subject   string            `json:"subject"`
	Headers   map[string]string `json:"headers"`
	RawEmail  string            `json:"rawEmail"`
	Size      int64             `json:"size"`
	Timestamp string            `json:"timestamp"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ReceiveEmail 解析并转发一封入站邮件
// POST /webhook/email
func (h *WebhookHandler) ReceiveEmail(c *gin.Context) {
	h.metrics.RecordInbound("webhook")

	var (
		resolution *domain.Resolution
		err        error
	)
	if c.GetHeader(HeaderCloudflareEmail) != "" {
		resolution, err = h.receiveRaw(c)
	} else {
		resolution, err = h.receiveParsed(c)
	}
	if err != nil {
		if errors.Is(err, errMissingFields) {
			Fail(c, http.StatusBadRequest, "missing_fields", "Missing required fields")
			return
		}
		if errors.Is(err, errMalformedPayload) {
			BadRequest(c, "Malformed email payload")
			return
		}
		writeError(c, h.log, err)
		return
	}

	OK(c, gin.H{
		"message":    "Email forwarded successfully",
		"message_id": resolution.MessageID,
	})
}

var (
	errMissingFields    = errors.New("missing required fields")
	errMalformedPayload = errors.New("malformed payload")
)

func (h *WebhookHandler) receiveParsed(c *gin.Context) (*domain.Resolution, error) {
	var p inboundPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		h.log.Warn("Invalid webhook payload", zap.Error(err))
		return nil, errMalformedPayload
	}
	if len(p.To) == 0 || strings.TrimSpace(p.From) == "" {
		return nil, errMissingFields
	}

	h.log.Info("Webhook email received",
		zap.Strings("to", p.To),
		zap.Int("attachments", len(p.Attachments)))

	return h.resolver.Resolve(c.Request.Context(), &domain.InboundMessage{
		Recipients:  p.To,
		From:        p.From,
		Subject:     p.Subject,
		Text:        firstNonEmpty(p.ContentText, p.TextContent),
		HTML:        firstNonEmpty(p.ContentHTML, p.HTMLContent),
		Attachments: p.Attachments,
	})
}

func (h *WebhookHandler) receiveRaw(c *gin.Context) (*domain.Resolution, error) {
	var p rawPayload
	if err := c.ShouldBindJSON(&p); err != nil {
		h.log.Warn("Invalid raw webhook payload", zap.Error(err))
		return nil, errMalformedPayload
	}
	if len(p.To) == 0 || strings.TrimSpace(p.From) == "" {
		return nil, errMissingFields
	}

	h.log.Info("Raw webhook email received",
		zap.Strings("to", p.To),
		zap.Int64("size", p.Size),
		zap.String("timestamp", p.Timestamp))

	return h.resolver.ResolveRaw(c.Request.Context(), &domain.RawInbound{
		Recipients: p.To,
		From:       p.From,
		Subject:    firstNonEmpty(p.Subject, headerValue(p.Headers, "subject")),
		Raw:        []byte(p.RawEmail),
	})
}

// headerValue 大小写不敏感地读取请求体中的邮件头
func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// TestSMTP 检查出站传输是否可用
// GET /webhook/test-smtp
func (h *WebhookHandler) TestSMTP(c *gin.Context) {
	verifier, ok := h.sender.(mailer.Verifier)
	if !ok {
		Fail(c, http.StatusInternalServerError, "transport_unavailable", "Transporter not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), verifyTimeout)
	defer cancel()
	if err := verifier.Verify(ctx); err != nil {
		h.log.Error("Mail transport verification failed", zap.String("transport", h.sender.Name()), zap.Error(err))
		Fail(c, http.StatusInternalServerError, "smtp_verification_failed", "SMTP verification failed")
		return
	}

	OK(c, gin.H{
		"message":   "SMTP connection verified",
		"transport": h.sender.Name(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

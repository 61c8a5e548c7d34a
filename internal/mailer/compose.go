package mailer

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Compose 生成 RFC 5322 邮件，返回原始字节和 Message-ID（不含尖括号）。
// 正文以 multipart/alternative 同时携带纯文本和 HTML，附件原样附加。
func Compose(msg *Message) ([]byte, string, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, "", fmt.Errorf("invalid from address %q: %w", msg.From, err)
	}
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return nil, "", fmt.Errorf("invalid to address %q: %w", msg.To, err)
	}

	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", []*mail.Address{to})
	if msg.ReplyTo != "" {
		// 原发件人地址不规范时不设置 Reply-To，不影响投递
		if replyTo, err := mail.ParseAddress(msg.ReplyTo); err == nil {
			h.SetAddressList("Reply-To", []*mail.Address{replyTo})
		}
	}
	h.SetSubject(msg.Subject)

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), domainOf(from.Address))
	h.SetMessageID(messageID)

	for _, extra := range msg.Headers {
		h.Set(extra.Key, extra.Value)
	}

	var buf bytes.Buffer
	if len(msg.Attachments) == 0 {
		w, err := mail.CreateInlineWriter(&buf, h)
		if err != nil {
			return nil, "", err
		}
		if err := writeBodies(w, msg); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), messageID, nil
	}

	w, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", err
	}

	inline, err := w.CreateInline()
	if err != nil {
		return nil, "", err
	}
	if err := writeBodies(inline, msg); err != nil {
		return nil, "", err
	}
	if err := inline.Close(); err != nil {
		return nil, "", err
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.Set("Content-Type", contentType)
		ah.SetFilename(att.Filename)

		aw, err := w.CreateAttachment(ah)
		if err != nil {
			return nil, "", err
		}
		if _, err := aw.Write(att.Content); err != nil {
			return nil, "", err
		}
		if err := aw.Close(); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), messageID, nil
}

func writeBodies(w *mail.InlineWriter, msg *Message) error {
	if err := writePart(w, "text/plain", msg.Text); err != nil {
		return err
	}
	if msg.HTML != "" {
		return writePart(w, "text/html", msg.HTML)
	}
	return nil
}

func writePart(w *mail.InlineWriter, contentType, body string) error {
	var ih mail.InlineHeader
	ih.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	pw, err := w.CreatePart(ih)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, body); err != nil {
		return err
	}
	return pw.Close()
}

func domainOf(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 {
		return address[at+1:]
	}
	return "localhost"
}

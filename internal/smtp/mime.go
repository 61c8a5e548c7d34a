package smtp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"

	"datavault/backend/internal/domain"
)

func init() {
	message.CharsetReader = charsetReader
}

// charsetReader 供 go-message 解码非 UTF-8 的头部与正文
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	charset = strings.ToLower(strings.TrimSpace(charset))
	switch charset {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return input, nil
	}
	enc := getCharsetEncoding(charset)
	if enc == nil {
		return nil, fmt.Errorf("unhandled charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}

// getCharsetEncoding 根据字符集名称返回编码
func getCharsetEncoding(charset string) encoding.Encoding {
	switch charset {
	case "gb2312", "gbk", "gb18030":
		return simplifiedchinese.GBK
	case "big5":
		return traditionalchinese.Big5
	case "shift_jis", "shift-jis", "sjis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	case "iso-2022-jp":
		return japanese.ISO2022JP
	case "euc-kr", "ks_c_5601-1987":
		return korean.EUCKR
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "iso-8859-15":
		return charmap.ISO8859_15
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	default:
		return nil
	}
}

// ParseMessage 解析原始邮件，提取主题、地址、正文和附件。
// 未知字符集不视为错误，按原始字节读取；只有 HTML 正文时用 HTMLToText 生成纯文本。
func ParseMessage(raw []byte) (*domain.InboundMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse mail: %w", err)
	}
	defer mr.Close()

	parsed := &domain.InboundMessage{
		Attachments: make([]*domain.Attachment, 0),
	}

	if subject, err := mr.Header.Subject(); err == nil {
		parsed.Subject = subject
	} else {
		parsed.Subject = mr.Header.Get("Subject")
	}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		parsed.From = from[0].Address
	} else {
		parsed.From = strings.TrimSpace(mr.Header.Get("From"))
	}

	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			parsed.Recipients = append(parsed.Recipients, addr.Address)
		}
	}

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return nil, fmt.Errorf("read part: %w", err)
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			contentType, params, _ := h.ContentType()
			body, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("read body: %w", err)
			}

			switch {
			case contentType == "text/html":
				if parsed.HTML == "" {
					parsed.HTML = string(body)
				}
			case contentType == "text/plain" || contentType == "":
				if parsed.Text == "" {
					parsed.Text = string(body)
				}
			default:
				// 内联图片等非文本部分按附件转发
				parsed.Attachments = append(parsed.Attachments, &domain.Attachment{
					Filename:    inlineFilename(params),
					ContentType: contentType,
					Content:     body,
				})
			}

		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			if filename == "" {
				filename = "unnamed"
			}
			contentType, _, _ := h.ContentType()
			content, err := io.ReadAll(p.Body)
			if err != nil {
				return nil, fmt.Errorf("read attachment %q: %w", filename, err)
			}
			parsed.Attachments = append(parsed.Attachments, &domain.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Content:     content,
			})
		}
	}

	if parsed.Text == "" && parsed.HTML != "" {
		if text, err := HTMLToText(parsed.HTML); err == nil {
			parsed.Text = text
		}
	}

	return parsed, nil
}

func inlineFilename(params map[string]string) string {
	if name := params["name"]; name != "" {
		return name
	}
	return "inline"
}

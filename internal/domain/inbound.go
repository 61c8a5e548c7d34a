package domain

// InboundMessage 是进入解析流程的一封邮件，已拆分出各字段。
type InboundMessage struct {
	Recipients  []string
	From        string
	Subject     string
	Text        string
	HTML        string
	Attachments []*Attachment
}

// Recipient 返回第一个收件人，多收件人时只处理第一个。
func (m *InboundMessage) Recipient() string {
	if len(m.Recipients) == 0 {
		return ""
	}
	return m.Recipients[0]
}

// Resolution 一次成功转发的结果
type Resolution struct {
	Alias       string
	Destination string
	MessageID   string
}

// RawInbound 未拆分的原始邮件，来自 SMTP DATA 或 webhook 的 rawEmail 字段。
// Subject 为 webhook 单独提供的主题，解析失败时使用。
type RawInbound struct {
	Recipients []string
	From       string
	Subject    string
	Raw        []byte
}

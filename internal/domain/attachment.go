package domain

// Attachment 邮件附件，转发时原样复制。
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"content"`
}

// Size 附件字节数
func (a *Attachment) Size() int {
	return len(a.Content)
}

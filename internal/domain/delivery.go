package domain

import "time"

// DeliveryStatus 转发结果
type DeliveryStatus string

const (
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// DeliveryLogEntry 记录一次转发尝试，只追加不修改。
// Alias 字段不做外键约束，别名删除后日志仍然保留。
type DeliveryLogEntry struct {
	ID          string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Alias       string         `json:"alias" gorm:"type:varchar(8);index;not null"`
	Sender      string         `json:"sender_email" gorm:"column:sender_email;type:varchar(320)"`
	Subject     string         `json:"subject" gorm:"type:text"`
	Destination string         `json:"forwarded_to" gorm:"column:forwarded_to;type:varchar(320)"`
	Status      DeliveryStatus `json:"status" gorm:"type:varchar(16);not null"`
	// Detail 传输层原始错误，仅落库与运维日志，不出现在 API 和推送中
	Detail      string         `json:"-" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// TableName 固定表名
func (DeliveryLogEntry) TableName() string { return "email_logs" }

// DeliveryEvent 推送给在线客户端的转发事件
type DeliveryEvent struct {
	AccountID string           `json:"-"`
	Entry     DeliveryLogEntry `json:"entry"`
	MessageID string           `json:"message_id,omitempty"`
}

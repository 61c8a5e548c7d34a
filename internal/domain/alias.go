package domain

import (
	"strings"
	"time"
)

// TokenLength 服务端别名 token 的固定长度
const TokenLength = 8

// Alias 表示账户下的一个转发别名。
// token 全局唯一，邮件发送到 token@转发域名 后会被转发到账户邮箱。
type Alias struct {
	Token      string     `json:"alias" gorm:"primaryKey;column:alias;type:varchar(8)"`
	AccountID  string     `json:"user_id" gorm:"column:user_id;type:varchar(36);index;not null"`
	IsActive   bool       `json:"is_active" gorm:"default:true;not null"`
	EmailCount int64      `json:"email_count" gorm:"default:0;not null"`
	LastUsed   *time.Time `json:"last_used"`
	CreatedAt  time.Time  `json:"created_at" gorm:"index"`
}

// TableName 固定表名
func (Alias) TableName() string { return "aliases" }

// AliasRecord 是别名与所属账户的联合视图，用于入站邮件解析。
type AliasRecord struct {
	Alias
	Destination string // 账户的真实邮箱
}

// ValidToken 判断 token 是否满足 8 位长度要求。
func ValidToken(token string) bool {
	return len(token) == TokenLength
}

// TokenFromAddress 取出地址 @ 前的本地部分并转为小写。
func TokenFromAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.Trim(address, "<>")
	if i := strings.Index(address, "@"); i >= 0 {
		address = address[:i]
	}
	return strings.ToLower(address)
}

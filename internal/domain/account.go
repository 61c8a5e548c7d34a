package domain

import "time"

// Account 注册账户，账户邮箱即别名的转发目标。
type Account struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email         string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	EmailVerified bool      `json:"email_verified" gorm:"default:false"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName 固定表名
func (Account) TableName() string { return "users" }

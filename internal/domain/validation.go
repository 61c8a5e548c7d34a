package domain

import (
	"errors"
	"net/mail"
	"strings"
)

var (
	ErrInvalidEmail = errors.New("invalid email format")
	ErrEmailTooLong = errors.New("email address too long")
)

// RFC 5322 长度限制
const (
	MaxEmailLength     = 254
	MaxLocalPartLength = 64
)

// NormalizeEmail 去除空白并转为小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmailAddress 校验账户邮箱，返回具体错误。
func ValidateEmailAddress(email string) error {
	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	local, host, ok := SplitAddress(email)
	if !ok || len(local) > MaxLocalPartLength || !strings.Contains(host, ".") {
		return ErrInvalidEmail
	}
	for _, r := range local {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || strings.ContainsRune("._-+", r)) {
			return ErrInvalidEmail
		}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateEmail 简化版本，返回 bool
func ValidateEmail(email string) bool {
	return ValidateEmailAddress(email) == nil
}

// SplitAddress 将地址拆为本地部分和域名，要求恰好一个 @。
func SplitAddress(address string) (local, host string, ok bool) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// FirstAddress 从可能包含显示名的地址头中取出纯地址，失败时返回原值。
func FirstAddress(value string) string {
	value = strings.TrimSpace(value)
	list, err := mail.ParseAddressList(value)
	if err != nil || len(list) == 0 {
		return strings.Trim(value, "<>")
	}
	return list[0].Address
}

// Package sitealias 在用户自己的邮箱地址上生成按站点区分的别名。
//
// 这类别名依赖真实邮箱的 plus / dot 寻址，不经过服务端注册表，
// 与服务端 8 位 token 相互独立。
package sitealias

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Format 地址拼接方式
type Format string

const (
	FormatStandard Format = "standard" // user+site-random@domain
	FormatDots     Format = "dots"     // user.site.random@domain
	FormatClean    Format = "clean"    // usersiterandom@domain
)

// SuffixLength 随机后缀长度
const SuffixLength = 6

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

var (
	leadingWWW  = regexp.MustCompile(`^www\.`)
	trailingTLD = regexp.MustCompile(`\.[^.]+$`)
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
)

// ParseFormat 解析格式名称，空字符串返回空格式。
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatStandard, FormatDots, FormatClean:
		return f, nil
	default:
		return "", fmt.Errorf("unknown alias format %q", s)
	}
}

// CleanDomain 去掉 www. 前缀、顶级域名后缀和所有非字母数字字符。
func CleanDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	d = leadingWWW.ReplaceAllString(d, "")
	d = trailingTLD.ReplaceAllString(d, "")
	return nonAlnum.ReplaceAllString(d, "")
}

// BuildAddress 按格式拼接别名地址
func BuildAddress(targetEmail, domain string, format Format, suffix string) (string, error) {
	parts := strings.Split(targetEmail, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ErrNoTargetEmail
	}
	local, host := parts[0], parts[1]
	label := CleanDomain(domain)

	switch format {
	case FormatDots:
		return fmt.Sprintf("%s.%s.%s@%s", local, label, suffix, host), nil
	case FormatClean:
		return fmt.Sprintf("%s%s%s@%s", local, label, suffix, host), nil
	default:
		return fmt.Sprintf("%s+%s-%s@%s", local, label, suffix, host), nil
	}
}

func randomSuffix(r io.Reader) (string, error) {
	buf := make([]byte, SuffixLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf), nil
}

var defaultRandom io.Reader = rand.Reader

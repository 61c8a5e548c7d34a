package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		expected bool
	}{
		{"Valid email", "test@example.com", true},
		{"Valid email with subdomain", "user@mail.example.com", true},
		{"Valid email with numbers", "user123@example.com", true},
		{"Valid email with dots", "user.name@example.com", true},
		{"Valid email with plus", "user+tag@example.com", true},
		{"Invalid email - no @", "testexample.com", false},
		{"Invalid email - no domain", "test@", false},
		{"Invalid email - no local part", "@example.com", false},
		{"Invalid email - multiple @", "test@@example.com", false},
		{"Invalid email - empty", "", false},
		{"Invalid email - spaces", "test @example.com", false},
		{"Invalid email - invalid characters", "test$@example.com", false},
		{"Invalid email - bare host", "test@localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateEmail(tt.email))
		})
	}
}

func TestValidateEmailAddress_TooLong(t *testing.T) {
	email := strings.Repeat("a", 250) + "@example.com"
	assert.ErrorIs(t, ValidateEmailAddress(email), ErrEmailTooLong)
}

func TestTokenFromAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    string
	}{
		{"普通地址", "abcd1234@datavlt.io", "abcd1234"},
		{"大写转小写", "ABCD1234@datavlt.io", "abcd1234"},
		{"尖括号", "<abcd1234@datavlt.io>", "abcd1234"},
		{"没有@", "abcd1234", "abcd1234"},
		{"多个@取第一个之前", "ab@cd@datavlt.io", "ab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenFromAddress(tt.address))
		})
	}
}

func TestValidToken(t *testing.T) {
	assert.True(t, ValidToken("abcd1234"))
	assert.False(t, ValidToken("abc"))
	assert.False(t, ValidToken("abcd12345"))
}

func TestFirstAddress(t *testing.T) {
	assert.Equal(t, "jane@mail.com", FirstAddress("Jane Doe <jane@mail.com>"))
	assert.Equal(t, "jane@mail.com", FirstAddress("jane@mail.com, bob@mail.com"))
	assert.Equal(t, "not an address", FirstAddress("not an address"))
}

func TestInboundMessage_Recipient(t *testing.T) {
	msg := &InboundMessage{Recipients: []string{"first@x.io", "second@x.io"}}
	assert.Equal(t, "first@x.io", msg.Recipient())
	assert.Equal(t, "", (&InboundMessage{}).Recipient())
}

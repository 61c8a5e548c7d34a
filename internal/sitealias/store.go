package sitealias

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("site alias not found")
	ErrNoTargetEmail = errors.New("target email not set")
)

// SiteAlias 某个站点当前记住的别名
type SiteAlias struct {
	Domain    string    `db:"domain" json:"domain"`
	Address   string    `db:"address" json:"alias"`
	Format    Format    `db:"format" json:"format"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	LastUsed  time.Time `db:"last_used" json:"lastUsed"`
}

// Settings 客户端全局设置
type Settings struct {
	TargetEmail       string `json:"targetEmail"`
	DefaultFormat     Format `json:"aliasFormat"`
	CompatibilityMode bool   `json:"compatibilityMode"`
}

// Store 本地别名存储
type Store interface {
	SaveAlias(ctx context.Context, alias *SiteAlias) error
	GetAlias(ctx context.Context, domain string) (*SiteAlias, error)
	TouchAlias(ctx context.Context, domain string, at time.Time) error
	ListAliases(ctx context.Context) ([]SiteAlias, error)
	DeleteAlias(ctx context.Context, domain string) error

	SiteFormat(ctx context.Context, domain string) (Format, error)
	SetSiteFormat(ctx context.Context, domain string, format Format) error

	LoadSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, settings Settings) error
}

package sitealias

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"datavault/backend/internal/domain"
)

// Service 客户端别名生成与管理
type Service struct {
	store  Store
	random io.Reader
	now    func() time.Time
}

// NewService 创建服务
func NewService(store Store) *Service {
	return &Service{
		store:  store,
		random: defaultRandom,
		now:    time.Now,
	}
}

// Generate 为站点生成新别名并覆盖该站点之前的记录。
// format 为空时依次使用站点记忆格式、兼容模式、全局默认格式。
// 只有显式指定的格式会被记住。
// 生成的地址不与其他站点去重。
func (s *Service) Generate(ctx context.Context, site string, format Format) (*SiteAlias, error) {
	site = normalizeSite(site)
	if site == "" {
		return nil, errors.New("site domain is required")
	}

	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings.TargetEmail == "" {
		return nil, ErrNoTargetEmail
	}

	explicit := format != ""
	use, err := s.resolveFormat(ctx, site, format, settings)
	if err != nil {
		return nil, err
	}

	suffix, err := randomSuffix(s.random)
	if err != nil {
		return nil, err
	}
	address, err := BuildAddress(settings.TargetEmail, site, use, suffix)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	alias := &SiteAlias{
		Domain:    site,
		Address:   address,
		Format:    use,
		CreatedAt: now,
		LastUsed:  now,
	}
	if err := s.store.SaveAlias(ctx, alias); err != nil {
		return nil, err
	}
	if explicit {
		if err := s.store.SetSiteFormat(ctx, site, use); err != nil {
			return nil, err
		}
	}
	return alias, nil
}

func (s *Service) resolveFormat(ctx context.Context, site string, format Format, settings Settings) (Format, error) {
	if format != "" {
		return format, nil
	}
	remembered, err := s.store.SiteFormat(ctx, site)
	if err != nil {
		return "", err
	}
	switch {
	case remembered != "":
		return remembered, nil
	case settings.CompatibilityMode:
		return FormatDots, nil
	case settings.DefaultFormat != "":
		return settings.DefaultFormat, nil
	default:
		return FormatStandard, nil
	}
}

// Get 返回站点记住的别名并刷新最近使用时间
func (s *Service) Get(ctx context.Context, site string) (*SiteAlias, error) {
	site = normalizeSite(site)
	alias, err := s.store.GetAlias(ctx, site)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if err := s.store.TouchAlias(ctx, site, now); err != nil {
		return nil, err
	}
	alias.LastUsed = now
	return alias, nil
}

// List 返回全部站点别名
func (s *Service) List(ctx context.Context) ([]SiteAlias, error) {
	return s.store.ListAliases(ctx)
}

// Delete 删除站点别名
func (s *Service) Delete(ctx context.Context, site string) error {
	return s.store.DeleteAlias(ctx, normalizeSite(site))
}

// TargetEmail 返回真实邮箱
func (s *Service) TargetEmail(ctx context.Context) (string, error) {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return "", err
	}
	return settings.TargetEmail, nil
}

// SetTargetEmail 设置真实邮箱
func (s *Service) SetTargetEmail(ctx context.Context, email string) error {
	email = domain.NormalizeEmail(email)
	if err := domain.ValidateEmailAddress(email); err != nil {
		return fmt.Errorf("target email %q: %w", email, err)
	}
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	settings.TargetEmail = email
	return s.store.SaveSettings(ctx, settings)
}

// Settings 返回当前设置，未设置的默认格式按 standard 返回
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return Settings{}, err
	}
	if settings.DefaultFormat == "" {
		settings.DefaultFormat = FormatStandard
	}
	return settings, nil
}

// SettingsUpdate 只更新非 nil 字段
type SettingsUpdate struct {
	DefaultFormat     *Format
	CompatibilityMode *bool
}

// UpdateSettings 更新默认格式或兼容模式
func (s *Service) UpdateSettings(ctx context.Context, update SettingsUpdate) error {
	settings, err := s.store.LoadSettings(ctx)
	if err != nil {
		return err
	}
	if update.DefaultFormat != nil {
		settings.DefaultFormat = *update.DefaultFormat
	}
	if update.CompatibilityMode != nil {
		settings.CompatibilityMode = *update.CompatibilityMode
	}
	return s.store.SaveSettings(ctx, settings)
}

func normalizeSite(site string) string {
	return strings.ToLower(strings.TrimSpace(site))
}

package sitealias

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore 内存实现，进程退出后数据丢失。
type MemoryStore struct {
	mu       sync.RWMutex
	aliases  map[string]SiteAlias
	formats  map[string]Format
	settings Settings
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		aliases: make(map[string]SiteAlias),
		formats: make(map[string]Format),
	}
}

func (s *MemoryStore) SaveAlias(_ context.Context, alias *SiteAlias) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[alias.Domain] = *alias
	return nil
}

func (s *MemoryStore) GetAlias(_ context.Context, domain string) (*SiteAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aliases[domain]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) TouchAlias(_ context.Context, domain string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.aliases[domain]
	if !ok {
		return ErrNotFound
	}
	a.LastUsed = at
	s.aliases[domain] = a
	return nil
}

func (s *MemoryStore) ListAliases(_ context.Context) ([]SiteAlias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]SiteAlias, 0, len(s.aliases))
	for _, a := range s.aliases {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

func (s *MemoryStore) DeleteAlias(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.aliases, domain)
	return nil
}

func (s *MemoryStore) SiteFormat(_ context.Context, domain string) (Format, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.formats[domain], nil
}

func (s *MemoryStore) SetSiteFormat(_ context.Context, domain string, format Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formats[domain] = format
	return nil
}

func (s *MemoryStore) LoadSettings(_ context.Context) (Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings, nil
}

func (s *MemoryStore) SaveSettings(_ context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	return nil
}

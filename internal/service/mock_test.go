package service

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"datavault/backend/internal/domain"
	"datavault/backend/internal/mailer"
)

// MockAliasRepo 模拟别名注册表
type MockAliasRepo struct {
	mock.Mock
}

func (m *MockAliasRepo) CreateAlias(ctx context.Context, alias *domain.Alias) error {
	args := m.Called(ctx, alias)
	return args.Error(0)
}

func (m *MockAliasRepo) GetAlias(ctx context.Context, token string) (*domain.Alias, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Alias), args.Error(1)
}

func (m *MockAliasRepo) LookupActiveAlias(ctx context.Context, token string) (*domain.AliasRecord, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AliasRecord), args.Error(1)
}

func (m *MockAliasRepo) TokenExists(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockAliasRepo) ListAliasesByAccount(ctx context.Context, accountID string) ([]domain.Alias, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Alias), args.Error(1)
}

func (m *MockAliasRepo) DeleteAlias(ctx context.Context, token, accountID string) (*domain.Alias, error) {
	args := m.Called(ctx, token, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Alias), args.Error(1)
}

func (m *MockAliasRepo) SetAliasActive(ctx context.Context, token, accountID string, active bool) (*domain.Alias, error) {
	args := m.Called(ctx, token, accountID, active)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Alias), args.Error(1)
}

func (m *MockAliasRepo) RecordAliasUsage(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// fakeSender 记录发送的邮件，可配置失败
type fakeSender struct {
	mu   sync.Mutex
	sent []*mailer.Message
	err  error
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(_ context.Context, msg *mailer.Message) (*mailer.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, msg)
	return &mailer.Receipt{MessageID: "<test-id@datavlt.io>", Transport: "fake"}, nil
}

func (s *fakeSender) last() *mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

// fakePublisher 收集发布的事件
type fakePublisher struct {
	mu     sync.Mutex
	events []domain.DeliveryEvent
}

func (p *fakePublisher) PublishDelivery(_ context.Context, event domain.DeliveryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// failingLogRepo 写入总是失败
type failingLogRepo struct{}

func (failingLogRepo) AppendDeliveryLog(context.Context, *domain.DeliveryLogEntry) error {
	return errors.New("disk full")
}

func (failingLogRepo) ListDeliveryLogs(context.Context, string, int) ([]domain.DeliveryLogEntry, error) {
	return nil, nil
}

func mailerHeader(key, value string) mailer.Header {
	return mailer.Header{Key: key, Value: value}
}

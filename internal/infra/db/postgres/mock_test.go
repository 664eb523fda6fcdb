//go:build !integration

package postgres

import (
	"context"
	"time"

	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
	red "telegram-group-paywall/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerGroupRepo mocks the database repository that the Group decorator wraps.
// Only the methods the tests exercise carry a func; the rest are inert.
type mockInnerGroupRepo struct {
	UpsertFunc      func(ctx context.Context, tx repository.Tx, g *model.Group) error
	FindByIDFunc    func(ctx context.Context, tx repository.Tx, id string) (*model.Group, error)
	AddSubscriberFn func(ctx context.Context, tx repository.Tx, groupID, subjectID string) error
}

func (m *mockInnerGroupRepo) Upsert(ctx context.Context, tx repository.Tx, g *model.Group) error {
	return m.UpsertFunc(ctx, tx, g)
}
func (m *mockInnerGroupRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Group, error) {
	return m.FindByIDFunc(ctx, tx, id)
}
func (m *mockInnerGroupRepo) FindByIDs(ctx context.Context, tx repository.Tx, ids []string) ([]*model.Group, error) {
	return nil, nil
}
func (m *mockInnerGroupRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Group, error) {
	return nil, nil
}
func (m *mockInnerGroupRepo) SetActive(ctx context.Context, tx repository.Tx, groupID string, active bool) error {
	return nil
}
func (m *mockInnerGroupRepo) AddSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	if m.AddSubscriberFn == nil {
		return nil
	}
	return m.AddSubscriberFn(ctx, tx, groupID, subjectID)
}
func (m *mockInnerGroupRepo) RemoveSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	return nil
}
func (m *mockInnerGroupRepo) CountGroupsAndOwners(ctx context.Context, tx repository.Tx) (int, int, error) {
	return 0, 0, nil
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", red.Nil
	}
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.IncrFunc == nil {
		return 0, nil
	}
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if m.ExpireFunc == nil {
		return nil
	}
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error {
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

package testutil

import (
	"context"
	"time"

	"github.com/savefuksd/forgeci/internal/store"
	"github.com/stretchr/testify/mock"
)

type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) LookupEntry(
	ctx context.Context,
	runnerID int64,
	key, prefix string,
) (*store.CacheEntry, bool, error) {
	args := m.Called(ctx, runnerID, key, prefix)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*store.CacheEntry), args.Bool(1), args.Error(2)
}

func (m *MockCacheService) SaveEntry(
	ctx context.Context,
	runnerID int64,
	key, archivePath string,
	sizeBytes int64,
) (*store.CacheEntry, error) {
	args := m.Called(ctx, runnerID, key, archivePath, sizeBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.CacheEntry), args.Error(1)
}

func (m *MockCacheService) ListEntries(
	ctx context.Context,
	runnerID int64,
) ([]store.CacheEntry, error) {
	args := m.Called(ctx, runnerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.CacheEntry), args.Error(1)
}

func (m *MockCacheService) DeleteEntry(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCacheService) PurgeOlderThan(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

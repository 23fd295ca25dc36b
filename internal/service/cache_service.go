package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/savefuksd/forgeci/internal/store"
)

type CacheServicer interface {
	LookupEntry(ctx context.Context, runnerID int64, key, prefix string) (*store.CacheEntry, bool, error)
	SaveEntry(ctx context.Context, runnerID int64, key, archivePath string, sizeBytes int64) (*store.CacheEntry, error)
	ListEntries(ctx context.Context, runnerID int64) ([]store.CacheEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error)
}

type CacheService struct {
	cacheStore store.CacheStore
}

func NewCacheService(cacheStore store.CacheStore) *CacheService {
	return &CacheService{cacheStore: cacheStore}
}

// LookupEntry resolves a cache key for a runner. The exact key wins; on miss
// the most recent entry under the restore-key prefix is returned instead. The
// boolean reports whether the match was exact.
func (s *CacheService) LookupEntry(
	ctx context.Context,
	runnerID int64,
	key, prefix string,
) (*store.CacheEntry, bool, error) {
	e, err := s.cacheStore.ReadCacheEntryByKey(ctx, runnerID, key)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	e, err = s.cacheStore.ReadLatestCacheEntryByPrefix(ctx, runnerID, prefix)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return e, false, nil
}

func (s *CacheService) SaveEntry(
	ctx context.Context,
	runnerID int64,
	key, archivePath string,
	sizeBytes int64,
) (*store.CacheEntry, error) {
	return s.cacheStore.UpsertCacheEntry(ctx, runnerID, key, archivePath, sizeBytes)
}

func (s *CacheService) ListEntries(
	ctx context.Context,
	runnerID int64,
) ([]store.CacheEntry, error) {
	entries, err := s.cacheStore.ListCacheEntries(ctx, runnerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return entries, nil
}

func (s *CacheService) DeleteEntry(ctx context.Context, id int64) error {
	return s.cacheStore.DeleteCacheEntry(ctx, id)
}

func (s *CacheService) PurgeOlderThan(
	ctx context.Context,
	retention time.Duration,
) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	return s.cacheStore.DeleteCacheEntriesBefore(ctx, cutoff)
}

// ScheduleRetentionSweep registers a daily job expiring cache entries older
// than the configured retention. Archives left on runners are overwritten on
// the next save under the same key.
func (s *CacheService) ScheduleRetentionSweep(
	scheduler gocron.Scheduler,
	retention time.Duration,
) {
	if _, err := scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 30, 0))),
		gocron.NewTask(func() {
			n, err := s.PurgeOlderThan(context.Background(), retention)
			if err != nil {
				log.Println("err purging expired cache entries:", err)
				return
			}
			if n > 0 {
				log.Printf("purged %d expired cache entries\n", n)
			}
		}),
	); err != nil {
		log.Fatal(err)
	}
}

package store

import (
	"context"
	"time"
)

// CacheEntry addresses a dependency cache archive stored on a runner.
// The key is derived from a manifest content hash; entries are scoped per
// runner and last-writer-wins on the key.
type CacheEntry struct {
	CacheEntryID  int64
	CacheRunnerID int64
	CacheKey      string
	ArchivePath   string
	SizeBytes     int64
	CreatedOn     time.Time
}

type CacheStore interface {
	UpsertCacheEntry(context.Context, int64, string, string, int64) (*CacheEntry, error)
	ReadCacheEntryByKey(context.Context, int64, string) (*CacheEntry, error)
	ReadLatestCacheEntryByPrefix(context.Context, int64, string) (*CacheEntry, error)
	DeleteCacheEntriesBefore(context.Context, time.Time) (int64, error)
	ListCacheEntries(context.Context, int64) ([]CacheEntry, error)
	DeleteCacheEntry(context.Context, int64) error
}

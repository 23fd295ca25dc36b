package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/savefuksd/forgeci/internal"
)

type CacheSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewCacheSQLiteStore(rdb, rwdb *sql.DB) *CacheSQLiteStore {
	return &CacheSQLiteStore{rdb, rwdb}
}

func (store *CacheSQLiteStore) UpsertCacheEntry(
	ctx context.Context,
	runnerID int64,
	key, archivePath string,
	sizeBytes int64,
) (*CacheEntry, error) {
	e := &CacheEntry{
		CacheRunnerID: runnerID,
		CacheKey:      key,
		ArchivePath:   archivePath,
		SizeBytes:     sizeBytes,
	}
	query := `insert into cache_entries (
		cache_runner_id,
		cache_key,
		archive_path,
		size_bytes
	)
	values ($1, $2, $3, $4)
	on conflict (cache_runner_id, cache_key) do update
	set archive_path = excluded.archive_path,
		size_bytes = excluded.size_bytes,
		created_on = current_timestamp
	returning cache_entry_id, created_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, e, query,
		e.CacheRunnerID, e.CacheKey, e.ArchivePath, e.SizeBytes,
	); err != nil {
		return nil, err
	}
	return e, nil
}

func (store *CacheSQLiteStore) ReadCacheEntryByKey(
	ctx context.Context,
	runnerID int64,
	key string,
) (*CacheEntry, error) {
	e := new(CacheEntry)
	query := `select * from cache_entries
	where cache_runner_id = $1 and cache_key = $2`
	if err := sqlscan.Get(ctx, store.rdb, e, query, runnerID, key); err != nil {
		return nil, err
	}
	return e, nil
}

// likeEscaper escapes like wildcards so build spec prefixes containing % or _
// match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (store *CacheSQLiteStore) ReadLatestCacheEntryByPrefix(
	ctx context.Context,
	runnerID int64,
	prefix string,
) (*CacheEntry, error) {
	e := new(CacheEntry)
	query := `select * from cache_entries
	where cache_runner_id = $1 and cache_key like $2 || '%' escape '\'
	order by created_on desc, cache_entry_id desc
	limit 1`
	if err := sqlscan.Get(ctx, store.rdb, e, query, runnerID, likeEscaper.Replace(prefix)); err != nil {
		return nil, err
	}
	return e, nil
}

func (store *CacheSQLiteStore) DeleteCacheEntriesBefore(
	ctx context.Context,
	cutoff time.Time,
) (int64, error) {
	query := "delete from cache_entries where created_on < $1"
	res, err := store.rwdb.ExecContext(
		ctx, query, cutoff.Format(internal.DBTimestampLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (store *CacheSQLiteStore) ListCacheEntries(
	ctx context.Context,
	runnerID int64,
) ([]CacheEntry, error) {
	query := `select * from cache_entries
	where cache_runner_id = $1
	order by created_on desc`
	entries := make([]CacheEntry, 0)
	err := sqlscan.Select(ctx, store.rdb, &entries, query, runnerID)
	return entries, err
}

func (store *CacheSQLiteStore) DeleteCacheEntry(ctx context.Context, id int64) error {
	query := "delete from cache_entries where cache_entry_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type RunnerSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewRunnerSQLiteStore(rdb, rwdb *sql.DB) *RunnerSQLiteStore {
	return &RunnerSQLiteStore{rdb, rwdb}
}

func (store *RunnerSQLiteStore) CreateRunner(
	ctx context.Context,
	name, description, hostname, username, workspace, cacheDir, osType, sshPrivateKeyHash string,
) (*Runner, error) {
	r := &Runner{
		Name:              name,
		Description:       description,
		Hostname:          hostname,
		Username:          username,
		Workspace:         workspace,
		CacheDir:          cacheDir,
		OSType:            osType,
		SSHPrivateKeyHash: sshPrivateKeyHash,
	}
	query := `insert into runners (
		name,
		description,
		hostname,
		username,
		workspace,
		cache_dir,
		os_type,
		ssh_private_key_hash
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8)
	returning runner_id, created_on`
	if err := sqlscan.Get(
		ctx, store.rwdb, r, query,
		r.Name,
		r.Description,
		r.Hostname,
		r.Username,
		r.Workspace,
		r.CacheDir,
		r.OSType,
		r.SSHPrivateKeyHash,
	); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunnerSQLiteStore) ReadRunnerByID(ctx context.Context, id int64) (*Runner, error) {
	r := &Runner{RunnerID: id}
	query := "select * from runners where runner_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, r, query, r.RunnerID); err != nil {
		return nil, err
	}
	return r, nil
}

func (store *RunnerSQLiteStore) UpdateRunner(
	ctx context.Context,
	id int64,
	name, description, hostname, username, workspace, cacheDir, osType string,
) error {
	query := `update runners
	set name = $1,
		description = $2,
		hostname = $3,
		username = $4,
		workspace = $5,
		cache_dir = $6,
		os_type = $7
	where runner_id = $8`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		name,
		description,
		hostname,
		username,
		workspace,
		cacheDir,
		osType,
		id,
	)
	return err
}

func (store *RunnerSQLiteStore) DeleteRunner(ctx context.Context, id int64) error {
	query := "delete from runners where runner_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *RunnerSQLiteStore) ListRunners(ctx context.Context) ([]*Runner, error) {
	query := "select * from runners order by name"
	runners := make([]*Runner, 0)
	err := sqlscan.Select(ctx, store.rdb, &runners, query)
	return runners, err
}

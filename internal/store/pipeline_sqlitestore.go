package store

import (
	"context"
	"database/sql"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type PipelineSQLiteStore struct {
	rdb, rwdb *sql.DB
}

func NewPipelineSQLiteStore(rdb, rwdb *sql.DB) *PipelineSQLiteStore {
	return &PipelineSQLiteStore{rdb, rwdb}
}

func (store *PipelineSQLiteStore) CreatePipeline(
	ctx context.Context,
	runnerID int64,
	name, description, repository, specPath, triggerBranch string,
	onPush, onPullRequest bool,
) (*Pipeline, error) {
	p := &Pipeline{
		PipelineRunnerID: runnerID,
		Name:             name,
		Description:      description,
		Repository:       repository,
		SpecPath:         specPath,
		TriggerBranch:    triggerBranch,
		OnPush:           onPush,
		OnPullRequest:    onPullRequest,
	}
	query := `insert into pipelines (
		pipeline_runner_id,
		name,
		description,
		repository,
		spec_path,
		trigger_branch,
		on_push,
		on_pull_request
	)
	values ($1, $2, $3, $4, $5, $6, $7, $8)
	returning pipeline_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, p, query,
		p.PipelineRunnerID,
		p.Name,
		p.Description,
		p.Repository,
		p.SpecPath,
		p.TriggerBranch,
		p.OnPush,
		p.OnPullRequest,
	); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *PipelineSQLiteStore) ReadPipelineByID(
	ctx context.Context,
	id int64,
) (*Pipeline, error) {
	p := &Pipeline{PipelineID: id}
	query := "select * from pipelines where pipeline_id = $1"
	if err := sqlscan.Get(ctx, store.rdb, p, query, p.PipelineID); err != nil {
		return nil, err
	}
	return p, nil
}

func (store *PipelineSQLiteStore) ReadPipelineRunData(
	ctx context.Context,
	id int64,
) (*PipelineRunData, error) {
	prd := new(PipelineRunData)
	query := `select
		p.pipeline_id,
		p.repository,
		p.spec_path,
		r.runner_id,
		r.os_type,
		r.hostname,
		r.workspace,
		r.cache_dir,
		r.username,
		r.ssh_private_key_hash
	from pipelines p
	join runners r
	on p.pipeline_runner_id = r.runner_id
	where p.pipeline_id = $1`
	err := sqlscan.Get(ctx, store.rdb, prd, query, id)
	if err != nil {
		return nil, err
	}
	return prd, nil
}

func (store *PipelineSQLiteStore) UpdatePipeline(
	ctx context.Context,
	id, runnerID int64,
	name, description, repository, specPath, triggerBranch string,
	onPush, onPullRequest bool,
) error {
	query := `update pipelines
	set pipeline_runner_id = $1,
		name = $2,
		description = $3,
		repository = $4,
		spec_path = $5,
		trigger_branch = $6,
		on_push = $7,
		on_pull_request = $8
	where pipeline_id = $9`
	_, err := store.rwdb.ExecContext(
		ctx, query,
		runnerID,
		name,
		description,
		repository,
		specPath,
		triggerBranch,
		onPush,
		onPullRequest,
		id,
	)
	return err
}

func (store *PipelineSQLiteStore) UpdatePipelineSchedule(
	ctx context.Context,
	id int64,
	schedule, scheduleBranch, scheduleJobID *string,
) error {
	query := `update pipelines
	set schedule = $1,
		schedule_branch = $2,
		schedule_job_id = $3
	where pipeline_id = $4`
	_, err := store.rwdb.ExecContext(ctx, query, schedule, scheduleBranch, scheduleJobID, id)
	return err
}

func (store *PipelineSQLiteStore) UpdatePipelineScheduleJobID(
	ctx context.Context,
	id int64,
	jobID *string,
) error {
	query := `update pipelines
	set schedule_job_id = $1
	where pipeline_id = $2`
	_, err := store.rwdb.ExecContext(ctx, query, jobID, id)
	return err
}

func (store *PipelineSQLiteStore) DeletePipeline(ctx context.Context, id int64) error {
	query := "delete from pipelines where pipeline_id = $1"
	_, err := store.rwdb.ExecContext(ctx, query, id)
	return err
}

func (store *PipelineSQLiteStore) ListPipelines(ctx context.Context) ([]*Pipeline, error) {
	query := "select * from pipelines order by name"
	pipelines := make([]*Pipeline, 0)
	err := sqlscan.Select(ctx, store.rdb, &pipelines, query)
	return pipelines, err
}

func (store *PipelineSQLiteStore) ListScheduledPipelines(
	ctx context.Context,
) ([]*Pipeline, error) {
	query := `select * from pipelines
	where schedule is not null and schedule != ''`
	pipelines := make([]*Pipeline, 0)
	err := sqlscan.Select(ctx, store.rdb, &pipelines, query)
	return pipelines, err
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/security"
	"github.com/savefuksd/forgeci/internal/store"
	"github.com/savefuksd/forgeci/internal/util"
)

type PipelineWriter interface {
	CreatePipeline(
		context.Context,
		int64,
		string, string, string, string, string,
		bool, bool,
	) (*store.Pipeline, error)
	UpdatePipeline(
		context.Context,
		int64, int64,
		string, string, string, string, string,
		bool, bool,
	) error
	UpdatePipelineSchedule(context.Context, int64, *string, *string, *string) error
	UpdatePipelineScheduleJobID(context.Context, int64, *string) error
	DeletePipeline(context.Context, int64) error
}

type PipelineReader interface {
	ReadPipelineByID(context.Context, int64) (*store.Pipeline, error)
	ReadPipelineRunData(context.Context, int64) (*store.PipelineRunData, error)
	ListPipelines(context.Context) ([]*store.Pipeline, error)
	ListScheduledPipelines(context.Context) ([]*store.Pipeline, error)
}

type PipelineStore interface {
	PipelineWriter
	PipelineReader
}

type RunWriter interface {
	CreateRun(context.Context, int64, store.RunEvent, string, string) (*store.Run, error)
	UpdateRunStartedOn(context.Context, int64, string, store.RunStatus, *time.Time) error
	UpdateRunEndedOn(context.Context, int64, store.RunStatus, *string, *string, *time.Time) error
	UpdateRunCacheKey(context.Context, int64, string, bool) error
	AppendRunOutput(context.Context, int64, string) error
	DeleteRun(context.Context, int64) error
}

type RunReader interface {
	ReadRunByID(context.Context, int64) (*store.Run, error)
	ListPipelineRuns(context.Context, int64) ([]store.Run, error)
	ListLatestPipelineRuns(context.Context, int64, int64) ([]store.Run, error)
	ListPipelineRunsPaginated(context.Context, int64, int64, int64) ([]store.Run, error)
	CountPipelineRuns(context.Context, int64) (int64, error)
}

type RunStore interface {
	RunWriter
	RunReader
}

type PipelineService struct {
	pipelineStore PipelineStore
	runStore      RunStore
	cacheService  CacheServicer
	scheduler     gocron.Scheduler
	aesEncrypter  security.Encrypter
	artifactRoot  string

	mu     sync.Mutex
	queues map[int64]*RunQueue
}

func NewPipelineService(
	pipelineStore PipelineStore,
	runStore RunStore,
	cacheService CacheServicer,
	scheduler gocron.Scheduler,
	aesEncrypter security.Encrypter,
	artifactRoot string,
) *PipelineService {
	return &PipelineService{
		pipelineStore: pipelineStore,
		runStore:      runStore,
		cacheService:  cacheService,
		scheduler:     scheduler,
		aesEncrypter:  aesEncrypter,
		artifactRoot:  artifactRoot,
		queues:        make(map[int64]*RunQueue),
	}
}

func (s *PipelineService) InitializeRunQueues(ctx context.Context) error {
	pipelines, err := s.ListPipelines(ctx)
	if err != nil {
		return err
	}

	ids := make([]int64, len(pipelines))
	for i, p := range pipelines {
		ids[i] = p.PipelineID
	}

	s.AddRunQueues(ids, internal.Config.QueueSize)
	s.StartRunQueues()
	return nil
}

func (s *PipelineService) CreatePipeline(
	ctx context.Context,
	runnerID int64,
	name, description, repository, specPath, triggerBranch string,
	onPush, onPullRequest bool,
) (*store.Pipeline, error) {
	p, err := s.pipelineStore.CreatePipeline(
		ctx,
		runnerID,
		name,
		description,
		repository,
		specPath,
		triggerBranch,
		onPush,
		onPullRequest,
	)
	if err != nil {
		return nil, err
	}
	s.AddRunQueue(p.PipelineID, internal.Config.QueueSize)
	if err := s.StartRunQueue(p.PipelineID); err != nil {
		return p, err
	}
	return p, nil
}

func (s *PipelineService) GetPipelineByID(
	ctx context.Context,
	pipelineID int64,
) (*store.Pipeline, error) {
	return s.pipelineStore.ReadPipelineByID(ctx, pipelineID)
}

func (s *PipelineService) GetPipelineRunData(
	ctx context.Context,
	id int64,
) (*store.PipelineRunData, error) {
	prd, err := s.pipelineStore.ReadPipelineRunData(ctx, id)
	if err != nil {
		return nil, err
	}

	privateKey, err := s.aesEncrypter.DecryptAES(prd.SSHPrivateKeyHash)
	if err != nil {
		return nil, err
	}
	prd.SSHPrivateKey = privateKey

	return prd, nil
}

func (s *PipelineService) UpdatePipeline(
	ctx context.Context,
	id, runnerID int64,
	name, description, repository, specPath, triggerBranch string,
	onPush, onPullRequest bool,
) error {
	return s.pipelineStore.UpdatePipeline(
		ctx,
		id,
		runnerID,
		name,
		description,
		repository,
		specPath,
		triggerBranch,
		onPush,
		onPullRequest,
	)
}

func (s *PipelineService) UpdatePipelineSchedule(
	ctx context.Context,
	id int64,
	schedule, scheduleBranch *string,
) error {
	p, err := s.pipelineStore.ReadPipelineByID(ctx, id)
	if err != nil {
		return err
	}

	// remove a previously scheduled job before replacing it
	if p.ScheduleJobID != nil {
		if err := s.RemoveScheduledJob(*p.ScheduleJobID); err != nil {
			log.Println("err removing scheduled job:", err)
		}
	}

	var jobID *string
	if schedule != nil && scheduleBranch != nil {
		jobID, err = s.SchedulePipelineRun(id, *schedule, *scheduleBranch)
		if err != nil {
			return err
		}
	}

	return s.pipelineStore.UpdatePipelineSchedule(ctx, id, schedule, scheduleBranch, jobID)
}

func (s *PipelineService) DeletePipeline(ctx context.Context, id int64) error {
	if err := s.pipelineStore.DeletePipeline(ctx, id); err != nil {
		return err
	}
	s.ShutdownRunQueue(id)
	s.RemoveRunQueue(id)
	return nil
}

func (s *PipelineService) ListPipelines(ctx context.Context) ([]*store.Pipeline, error) {
	pipelines, err := s.pipelineStore.ListPipelines(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return pipelines, nil
}

func (s *PipelineService) ListScheduledPipelines(
	ctx context.Context,
) ([]*store.Pipeline, error) {
	return s.pipelineStore.ListScheduledPipelines(ctx)
}

// InitializeSchedules registers gocron jobs for every pipeline with a stored
// cron schedule, refreshing the stored job IDs.
func (s *PipelineService) InitializeSchedules(ctx context.Context) error {
	pipelines, err := s.ListScheduledPipelines(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	for _, p := range pipelines {
		if p.Schedule == nil || p.ScheduleBranch == nil {
			continue
		}
		jobID, err := s.SchedulePipelineRun(p.PipelineID, *p.Schedule, *p.ScheduleBranch)
		if err != nil {
			return err
		}
		if err := s.pipelineStore.UpdatePipelineScheduleJobID(
			ctx, p.PipelineID, jobID,
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *PipelineService) SchedulePipelineRun(
	pipelineID int64,
	schedule, branch string,
) (*string, error) {
	if s.scheduler == nil {
		return nil, nil
	}
	job, err := s.scheduler.NewJob(
		gocron.CronJob(schedule, false),
		gocron.NewTask(func() {
			if r, err := s.CreateRun(
				context.Background(),
				pipelineID,
				store.EventSchedule,
				branch,
				"",
			); err == nil {
				if err := s.EnqueueRun(r); err != nil {
					log.Println("queue is full")
					return
				}
			}
		}))
	if err != nil {
		return nil, fmt.Errorf("error scheduling pipeline job: %+w", err)
	}
	return util.AsPtr(job.ID().String()), nil
}

func (s *PipelineService) RemoveScheduledJob(jobID string) error {
	if s.scheduler == nil {
		return nil
	}
	for _, job := range s.scheduler.Jobs() {
		if job.ID().String() == jobID {
			return s.scheduler.RemoveJob(job.ID())
		}
	}
	return nil
}

func (s *PipelineService) CreateRun(
	ctx context.Context,
	pipelineID int64,
	event store.RunEvent,
	branch, revision string,
) (*store.Run, error) {
	return s.runStore.CreateRun(ctx, pipelineID, event, branch, revision)
}

func (s *PipelineService) GetRunByID(ctx context.Context, runID int64) (*store.Run, error) {
	return s.runStore.ReadRunByID(ctx, runID)
}

func (s *PipelineService) UpdateRunStartedOn(
	ctx context.Context,
	runID int64,
	workingDirectory string,
	status store.RunStatus,
	startedOn *time.Time,
) error {
	return s.runStore.UpdateRunStartedOn(ctx, runID, workingDirectory, status, startedOn)
}

func (s *PipelineService) UpdateRunEndedOn(
	ctx context.Context,
	runID int64,
	status store.RunStatus,
	artifactLabel, artifactPath *string,
	endedOn *time.Time,
) error {
	return s.runStore.UpdateRunEndedOn(ctx, runID, status, artifactLabel, artifactPath, endedOn)
}

func (s *PipelineService) UpdateRunCacheKey(
	ctx context.Context,
	runID int64,
	cacheKey string,
	cacheHit bool,
) error {
	return s.runStore.UpdateRunCacheKey(ctx, runID, cacheKey, cacheHit)
}

func (s *PipelineService) AppendRunOutput(ctx context.Context, runID int64, out string) error {
	return s.runStore.AppendRunOutput(ctx, runID, out)
}

func (s *PipelineService) DeleteRun(ctx context.Context, runID int64) error {
	return s.runStore.DeleteRun(ctx, runID)
}

func (s *PipelineService) ListPipelineRuns(
	ctx context.Context,
	pipelineID int64,
) ([]store.Run, error) {
	runs, err := s.runStore.ListPipelineRuns(ctx, pipelineID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return runs, nil
}

func (s *PipelineService) ListLatestPipelineRuns(
	ctx context.Context,
	pipelineID, limit int64,
) ([]store.Run, error) {
	return s.runStore.ListLatestPipelineRuns(ctx, pipelineID, limit)
}

func (s *PipelineService) ListPipelineRunsPaginated(
	ctx context.Context,
	pipelineID, limit, offset int64,
) ([]store.Run, error) {
	return s.runStore.ListPipelineRunsPaginated(ctx, pipelineID, limit, offset)
}

func (s *PipelineService) GetRunCount(ctx context.Context, id int64) (int64, error) {
	return s.runStore.CountPipelineRuns(ctx, id)
}

func (s *PipelineService) AddRunQueues(ids []int64, maxRuns int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.queues[id] = NewRunQueue(s, s.cacheService, s.artifactRoot, maxRuns)
	}
}

func (s *PipelineService) StartRunQueues() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queues {
		go s.queues[i].Run()
	}
}

func (s *PipelineService) AddRunQueue(id int64, maxRuns int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[id] = NewRunQueue(s, s.cacheService, s.artifactRoot, maxRuns)
}

func (s *PipelineService) StartRunQueue(id int64) error {
	rq, ok := s.GetPipelineRunQueue(id)
	if !ok {
		return fmt.Errorf("run queue for pipeline %d does not exist", id)
	}
	go rq.Run()
	return nil
}

func (s *PipelineService) GetPipelineRunQueue(id int64) (*RunQueue, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rq, ok := s.queues[id]
	return rq, ok
}

func (s *PipelineService) RemoveRunQueue(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, id)
}

func (s *PipelineService) EnqueueRun(r *store.Run) error {
	rq, ok := s.GetPipelineRunQueue(r.RunPipelineID)
	if !ok {
		return fmt.Errorf("run queue for pipeline %d does not exist", r.RunPipelineID)
	}

	return rq.Enqueue(r)
}

func (s *PipelineService) CancelRun(pipelineID, runID int64) error {
	rq, ok := s.GetPipelineRunQueue(pipelineID)
	if !ok {
		return fmt.Errorf("run queue for pipeline %d does not exist", pipelineID)
	}
	rq.CancelRun(runID)
	return nil
}

func (s *PipelineService) ShutdownRunQueue(id int64) {
	rq, ok := s.GetPipelineRunQueue(id)
	if !ok {
		return
	}
	rq.Shutdown()
}

func (s *PipelineService) ShutdownAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wg sync.WaitGroup
	for _, rq := range s.queues {
		wg.Add(1)
		go func(rq *RunQueue) {
			defer wg.Done()
			rq.Shutdown()
		}(rq)
	}
	wg.Wait()
}

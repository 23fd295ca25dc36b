package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/savefuksd/forgeci/internal/store"
)

// PipelineServicer is the part of the pipeline service a run queue needs to
// process a build run.
type PipelineServicer interface {
	GetPipelineRunData(ctx context.Context, pipelineID int64) (*store.PipelineRunData, error)
	GetRunByID(ctx context.Context, runID int64) (*store.Run, error)
	UpdateRunStartedOn(
		ctx context.Context,
		runID int64,
		workingDirectory string,
		status store.RunStatus,
		startedOn *time.Time,
	) error
	UpdateRunEndedOn(
		ctx context.Context,
		runID int64,
		status store.RunStatus,
		artifactLabel, artifactPath *string,
		endedOn *time.Time,
	) error
	UpdateRunCacheKey(ctx context.Context, runID int64, cacheKey string, cacheHit bool) error
	AppendRunOutput(ctx context.Context, runID int64, out string) error
}

func NewRunQueue(
	pipelineService PipelineServicer,
	cacheService CacheServicer,
	artifactRoot string,
	maxRuns int64,
) *RunQueue {
	return &RunQueue{
		pipelineService:  pipelineService,
		cacheService:     cacheService,
		artifactRoot:     artifactRoot,
		connectRunner:    newSSHRunner,
		OutputSSEClients: NewSSEClientMap[string](),
		StatusSSEClients: NewSSEClientMap[store.Run](),
		queue:            make(chan *store.Run, maxRuns),
		done:             make(chan struct{}),
		cancelRunMap:     NewCancelMap[int64](),
	}
}

// RunQueue serializes the build runs of a single pipeline. Runs queue up in a
// bounded channel and execute one at a time on the pipeline's runner.
type RunQueue struct {
	pipelineService  PipelineServicer
	cacheService     CacheServicer
	artifactRoot     string
	connectRunner    func(username, hostname string, privateKey []byte) (remoteRunner, error)
	OutputSSEClients *SSEClientMap[string]
	StatusSSEClients *SSEClientMap[store.Run]

	queue        chan *store.Run
	done         chan struct{}
	cancelRunMap *CancelMap[int64]

	outputCh chan string
	statusCh chan store.Run
	mu       sync.Mutex
}

func (rq *RunQueue) CancelRun(runID int64) {
	rq.cancelRunMap.Call(runID)
}

func (rq *RunQueue) Enqueue(r *store.Run) error {
	select {
	case rq.queue <- r:
		return nil
	default:
		return NewErrRunQueueFull()
	}
}

func (rq *RunQueue) Run() {
	for {
		select {
		case run := <-rq.queue:
			rq.outputCh = make(chan string)
			rq.statusCh = make(chan store.Run)

			ctx, cancel := context.WithCancel(context.Background())
			rq.cancelRunMap.AddCancel(run.RunID, cancel)

			go rq.handleOutput(ctx, run.RunID)
			go rq.handleStatus()

			if err := rq.processRun(ctx, run); err != nil {
				endedOn := time.Now().UTC()
				run.EndedOn = &endedOn
				if _, ok := err.(RunCancelError); ok {
					run.Status = store.StatusCancelled
				} else {
					run.Status = store.StatusFailed
				}
				if sqlErr := rq.pipelineService.UpdateRunEndedOn(
					context.Background(),
					run.RunID,
					run.Status,
					run.ArtifactLabel,
					run.ArtifactPath,
					run.EndedOn,
				); sqlErr != nil {
					log.Println("err updating run status to failed:", errors.Join(err, sqlErr))
				}
				log.Println("err processing run:", err)
				r, err := rq.pipelineService.GetRunByID(context.Background(), run.RunID)
				if err != nil {
					log.Println("err getting run by id")
				} else {
					run = r
					rq.statusCh <- *r
				}

				failMessage := `
=============================================
FAIL || Build run failed.
=============================================
`
				rq.outputCh <- failMessage
			}

			close(rq.outputCh)
			close(rq.statusCh)
			rq.cancelRunMap.RemoveCancel(run.RunID)
		case <-rq.done:
			close(rq.queue)
			return
		}
	}
}

func (rq *RunQueue) Shutdown() {
	rq.mu.Lock()
	defer rq.mu.Unlock()
	select {
	case <-rq.done:
	default:
		close(rq.done)
	}
}

func (rq *RunQueue) handleOutput(ctx context.Context, runID int64) {
	for out := range rq.outputCh {
		if err := rq.pipelineService.AppendRunOutput(ctx, runID, out); err != nil {
			log.Printf("err appending run output: %+v\n", err)
		}
		rq.OutputSSEClients.SendToClients(out)
	}
}

func (rq *RunQueue) handleStatus() {
	for r := range rq.statusCh {
		rq.StatusSSEClients.SendToClients(r)
	}
}

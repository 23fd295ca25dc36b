package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/service"
	"github.com/savefuksd/forgeci/internal/store"
	"github.com/savefuksd/forgeci/internal/util"
)

const maxRunsPerPage int64 = 10

func SetupPipelineRoutes(
	g *echo.Group,
	pipelineService PipelineServicer,
	apiKeyService APIKeyServicer,
) {
	h := NewPipelineHandler(pipelineService, apiKeyService)
	g.POST("/pipelines/:pipeline_id/webhook-trigger", h.PostPipelineRunWebhookTrigger)

	pg := g.Group("", APIKeyAuth(apiKeyService))
	pg.POST("/pipelines", h.PostPipeline)
	pg.GET("/pipelines", h.GetPipelines)
	pg.GET("/pipelines/:pipeline_id", h.GetPipeline)
	pg.PATCH("/pipelines/:pipeline_id", h.PatchPipeline)
	pg.DELETE("/pipelines/:pipeline_id", h.DeletePipeline)
	pg.PATCH("/pipelines/:pipeline_id/schedule", h.PatchPipelineSchedule)
	pg.POST("/pipelines/:pipeline_id/runs", h.PostPipelineRun)
	pg.GET("/pipelines/:pipeline_id/runs", h.GetPipelineRuns)
	pg.GET("/pipelines/:pipeline_id/runs/:run_id", h.GetPipelineRun)
	pg.GET("/pipelines/:pipeline_id/runs/:run_id/output", h.GetPipelineRunOutput)
	pg.GET("/pipelines/:pipeline_id/runs/:run_id/output/sse", h.GetPipelineRunOutputSSE)
	pg.GET("/pipelines/:pipeline_id/runs/:run_id/status/sse", h.GetPipelineRunStatusSSE)
	pg.GET("/pipelines/:pipeline_id/runs/:run_id/artifact", h.GetPipelineRunArtifact)
	pg.POST("/pipelines/:pipeline_id/runs/:run_id/cancel", h.PostCancelPipelineRun)
	pg.DELETE("/pipelines/:pipeline_id/runs/:run_id", h.DeletePipelineRun)
}

type PipelineWriter interface {
	CreatePipeline(
		ctx context.Context,
		runnerID int64,
		name, description, repository, specPath, triggerBranch string,
		onPush, onPullRequest bool,
	) (*store.Pipeline, error)
	UpdatePipeline(
		ctx context.Context,
		pipelineID, runnerID int64,
		name, description, repository, specPath, triggerBranch string,
		onPush, onPullRequest bool,
	) error
	UpdatePipelineSchedule(ctx context.Context, id int64, schedule, branch *string) error
	DeletePipeline(ctx context.Context, pipelineID int64) error
}

type PipelineReader interface {
	GetPipelineByID(ctx context.Context, pipelineID int64) (*store.Pipeline, error)
	ListPipelines(ctx context.Context) ([]*store.Pipeline, error)
}

type PipelineRunWriter interface {
	CreateRun(
		ctx context.Context,
		pipelineID int64,
		event store.RunEvent,
		branch, revision string,
	) (*store.Run, error)
	DeleteRun(ctx context.Context, runID int64) error
}

type PipelineRunReader interface {
	GetRunByID(ctx context.Context, runID int64) (*store.Run, error)
	ListPipelineRunsPaginated(ctx context.Context, id, limit, offset int64) ([]store.Run, error)
	GetRunCount(ctx context.Context, id int64) (int64, error)
}

type RunQueueServicer interface {
	GetPipelineRunQueue(id int64) (*service.RunQueue, bool)
	EnqueueRun(run *store.Run) error
	CancelRun(pipelineID, runID int64) error
}

type PipelineServicer interface {
	PipelineWriter
	PipelineReader
	PipelineRunWriter
	PipelineRunReader
	RunQueueServicer
}

type PipelineHandler struct {
	pipelineService PipelineServicer
	apiKeyService   APIKeyServicer
}

func NewPipelineHandler(
	pipelineService PipelineServicer,
	apiKeyService APIKeyServicer,
) *PipelineHandler {
	return &PipelineHandler{
		pipelineService: pipelineService,
		apiKeyService:   apiKeyService,
	}
}

func (h *PipelineHandler) PostPipeline(c echo.Context) error {
	pp := new(PipelineParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}
	if pp.Name == "" || pp.Repository == "" || pp.PipelineRunnerID == 0 {
		return newError(nil, http.StatusBadRequest,
			"name, repository and pipeline_runner_id are required")
	}
	if pp.SpecPath == "" {
		pp.SpecPath = internal.DefaultSpecPath
	}
	if pp.TriggerBranch == "" {
		pp.TriggerBranch = "master"
	}

	p, err := h.pipelineService.CreatePipeline(
		c.Request().Context(),
		pp.PipelineRunnerID,
		pp.Name, pp.Description, pp.Repository, pp.SpecPath, pp.TriggerBranch,
		pp.OnPush, pp.OnPullRequest,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "a pipeline with this name already exists")
		}
		return newError(err, http.StatusInternalServerError, "unable to create pipeline")
	}

	return c.JSON(http.StatusCreated, toPipelineResponse(p))
}

func (h *PipelineHandler) GetPipelines(c echo.Context) error {
	pipelines, err := h.pipelineService.ListPipelines(c.Request().Context())
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to list pipelines")
	}

	out := make([]PipelineResponse, len(pipelines))
	for i, p := range pipelines {
		out[i] = toPipelineResponse(p)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PipelineHandler) GetPipeline(c echo.Context) error {
	pp := new(PipelineParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline ID")
	}

	p, err := h.pipelineService.GetPipelineByID(c.Request().Context(), pp.PipelineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "pipeline not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read pipeline")
	}

	return c.JSON(http.StatusOK, toPipelineResponse(p))
}

func (h *PipelineHandler) PatchPipeline(c echo.Context) error {
	pp := new(PipelineParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline data")
	}

	if err := h.pipelineService.UpdatePipeline(
		c.Request().Context(),
		pp.PipelineID,
		pp.PipelineRunnerID,
		pp.Name, pp.Description, pp.Repository, pp.SpecPath, pp.TriggerBranch,
		pp.OnPush, pp.OnPullRequest,
	); err != nil {
		if isUniqueConstraintError(err) {
			return newError(err, http.StatusConflict, "a pipeline with this name already exists")
		}
		return newError(err, http.StatusInternalServerError, "unable to update pipeline")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) PatchPipelineSchedule(c echo.Context) error {
	sp := new(ScheduleParams)
	if err := c.Bind(sp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid schedule data")
	}
	if (sp.Schedule == nil) != (sp.ScheduleBranch == nil) {
		return newError(nil, http.StatusBadRequest,
			"schedule and schedule_branch must be set together")
	}

	if err := h.pipelineService.UpdatePipelineSchedule(
		c.Request().Context(), sp.PipelineID, sp.Schedule, sp.ScheduleBranch,
	); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to update schedule")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) DeletePipeline(c echo.Context) error {
	pp := new(PipelineParams)
	if err := c.Bind(pp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline ID")
	}

	if err := h.pipelineService.DeletePipeline(
		c.Request().Context(), pp.PipelineID,
	); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete pipeline")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PipelineHandler) PostPipelineRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run data")
	}

	p, err := h.pipelineService.GetPipelineByID(c.Request().Context(), rp.PipelineID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "pipeline not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read pipeline")
	}
	if rp.Branch == "" {
		rp.Branch = p.TriggerBranch
	}

	r, err := h.pipelineService.CreateRun(
		c.Request().Context(), p.PipelineID, store.EventManual, rp.Branch, rp.Revision,
	)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to create run")
	}

	if err := h.pipelineService.EnqueueRun(r); err != nil {
		return newError(err, http.StatusConflict, "run queue is full")
	}

	return c.JSON(http.StatusCreated, toRunResponse(r))
}

// PostPipelineRunWebhookTrigger receives forge webhooks. Events that do not
// match the pipeline's trigger settings are acknowledged without creating a
// run so the forge does not retry them.
func (h *PipelineHandler) PostPipelineRunWebhookTrigger(c echo.Context) error {
	apiKeyValue := c.Request().Header.Get(internal.WebhookTriggerKeyHeader)
	wp := new(WebhookParams)
	if err := c.Bind(wp); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid webhook data")
	}

	if _, err := h.apiKeyService.GetAPIKeyByValue(
		c.Request().Context(), apiKeyValue,
	); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid api key")
	}

	event := store.RunEvent(wp.Event)
	if event != store.EventPush && event != store.EventPullRequest {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported webhook event")
	}

	p, err := h.pipelineService.GetPipelineByID(c.Request().Context(), wp.PipelineID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "pipeline not found")
	}

	if !service.TriggerMatches(p, event, wp.Branch) {
		return c.JSON(http.StatusOK, map[string]any{"triggered": false})
	}

	r, err := h.pipelineService.CreateRun(
		c.Request().Context(), p.PipelineID, event, wp.Branch, wp.Revision,
	)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "unable to create run")
	}

	if err := h.pipelineService.EnqueueRun(r); err != nil {
		return echo.NewHTTPError(
			http.StatusConflict, "run queue is full",
		).WithInternal(err)
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"triggered": true,
		"run":       toRunResponse(r),
	})
}

func (h *PipelineHandler) GetPipelineRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	r, err := h.pipelineService.GetRunByID(c.Request().Context(), rp.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run")
	}

	return c.JSON(http.StatusOK, toRunResponse(r))
}

func (h *PipelineHandler) GetPipelineRuns(c echo.Context) error {
	lp := new(ListRunsParams)
	if err := c.Bind(lp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid pipeline ID")
	}
	if lp.Page < 1 {
		lp.Page = 1
	}

	runs, err := h.pipelineService.ListPipelineRunsPaginated(
		c.Request().Context(),
		lp.PipelineID,
		maxRunsPerPage,
		(lp.Page-1)*maxRunsPerPage,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newError(err, http.StatusInternalServerError, "unable to list runs")
	}

	total, err := h.pipelineService.GetRunCount(c.Request().Context(), lp.PipelineID)
	if err != nil {
		return newError(err, http.StatusInternalServerError, "unable to count runs")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"runs":  toRunResponses(runs),
		"page":  lp.Page,
		"total": total,
	})
}

func (h *PipelineHandler) GetPipelineRunOutput(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	r, err := h.pipelineService.GetRunByID(c.Request().Context(), rp.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run")
	}

	var output string
	if r.Output != nil {
		output = *r.Output
	}
	return c.String(http.StatusOK, output)
}

func (h *PipelineHandler) GetPipelineRunOutputSSE(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rq, ok := h.pipelineService.GetPipelineRunQueue(rp.PipelineID)
	if !ok {
		return nil
	}

	id := uuid.NewString()
	rq.OutputSSEClients.AddClient(id)
	defer rq.OutputSSEClients.RemoveClient(id)

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case out := <-rq.OutputSSEClients.GetClient(id):
			event := &Event{Data: []byte(out)}
			if err := event.MarshalTo(w); err != nil {
				log.Println("err marshaling event data:", err)
			}
			w.Flush()
		default:
			time.Sleep(1 * time.Second)
		}
	}
}

func (h *PipelineHandler) GetPipelineRunStatusSSE(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	rq, ok := h.pipelineService.GetPipelineRunQueue(rp.PipelineID)
	if !ok {
		return nil
	}

	id := uuid.NewString()
	rq.StatusSSEClients.AddClient(id)
	defer rq.StatusSSEClients.RemoveClient(id)

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case r := <-rq.StatusSSEClients.GetClient(id):
			b, err := json.Marshal(toRunResponse(&r))
			if err != nil {
				log.Println("err marshaling run status:", err)
				continue
			}
			event := &Event{Data: b, Event: []byte("status")}
			if err := event.MarshalTo(w); err != nil {
				log.Println("err marshaling event data:", err)
			}
			w.Flush()
		default:
			time.Sleep(3 * time.Second)
		}
	}
}

func (h *PipelineHandler) GetPipelineRunArtifact(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	r, err := h.pipelineService.GetRunByID(c.Request().Context(), rp.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(err, http.StatusNotFound, "run not found")
		}
		return newError(err, http.StatusInternalServerError, "unable to read run")
	}
	if r.ArtifactPath == nil {
		return newError(nil, http.StatusNotFound, "run has no published artifact")
	}
	if exists, _ := util.PathExists(*r.ArtifactPath); !exists {
		return newError(nil, http.StatusGone, "artifact file no longer exists")
	}

	return c.Attachment(*r.ArtifactPath, filepath.Base(*r.ArtifactPath))
}

func (h *PipelineHandler) PostCancelPipelineRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	if err := h.pipelineService.CancelRun(rp.PipelineID, rp.RunID); err != nil {
		return newError(err, http.StatusNotFound, "run queue not found")
	}

	return c.JSON(http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *PipelineHandler) DeletePipelineRun(c echo.Context) error {
	rp := new(RunParams)
	if err := c.Bind(rp); err != nil {
		return newError(err, http.StatusBadRequest, "invalid run ID")
	}

	if err := h.pipelineService.DeleteRun(c.Request().Context(), rp.RunID); err != nil {
		return newError(err, http.StatusInternalServerError, "unable to delete run")
	}

	return c.NoContent(http.StatusNoContent)
}

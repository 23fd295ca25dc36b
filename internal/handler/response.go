package handler

import (
	"time"

	"github.com/savefuksd/forgeci/internal/store"
)

type RunnerResponse struct {
	RunnerID    int64     `json:"runner_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Hostname    string    `json:"hostname"`
	Username    string    `json:"username"`
	Workspace   string    `json:"workspace"`
	CacheDir    string    `json:"cache_dir"`
	OSType      string    `json:"os_type"`
	CreatedOn   time.Time `json:"created_on"`
}

func toRunnerResponse(r *store.Runner) RunnerResponse {
	return RunnerResponse{
		RunnerID:    r.RunnerID,
		Name:        r.Name,
		Description: r.Description,
		Hostname:    r.Hostname,
		Username:    r.Username,
		Workspace:   r.Workspace,
		CacheDir:    r.CacheDir,
		OSType:      r.OSType,
		CreatedOn:   r.CreatedOn,
	}
}

type PipelineResponse struct {
	PipelineID       int64   `json:"pipeline_id"`
	PipelineRunnerID int64   `json:"pipeline_runner_id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Repository       string  `json:"repository"`
	SpecPath         string  `json:"spec_path"`
	TriggerBranch    string  `json:"trigger_branch"`
	OnPush           bool    `json:"on_push"`
	OnPullRequest    bool    `json:"on_pull_request"`
	Schedule         *string `json:"schedule"`
	ScheduleBranch   *string `json:"schedule_branch"`
}

func toPipelineResponse(p *store.Pipeline) PipelineResponse {
	return PipelineResponse{
		PipelineID:       p.PipelineID,
		PipelineRunnerID: p.PipelineRunnerID,
		Name:             p.Name,
		Description:      p.Description,
		Repository:       p.Repository,
		SpecPath:         p.SpecPath,
		TriggerBranch:    p.TriggerBranch,
		OnPush:           p.OnPush,
		OnPullRequest:    p.OnPullRequest,
		Schedule:         p.Schedule,
		ScheduleBranch:   p.ScheduleBranch,
	}
}

type RunResponse struct {
	RunID         int64           `json:"run_id"`
	PipelineID    int64           `json:"pipeline_id"`
	Event         store.RunEvent  `json:"event"`
	Branch        string          `json:"branch"`
	Revision      string          `json:"revision,omitempty"`
	CacheKey      *string         `json:"cache_key"`
	CacheHit      bool            `json:"cache_hit"`
	ArtifactLabel *string         `json:"artifact_label"`
	Status        store.RunStatus `json:"status"`
	CreatedOn     time.Time       `json:"created_on"`
	StartedOn     *time.Time      `json:"started_on"`
	EndedOn       *time.Time      `json:"ended_on"`
}

func toRunResponse(r *store.Run) RunResponse {
	return RunResponse{
		RunID:         r.RunID,
		PipelineID:    r.RunPipelineID,
		Event:         r.Event,
		Branch:        r.Branch,
		Revision:      r.Revision,
		CacheKey:      r.CacheKey,
		CacheHit:      r.CacheHit,
		ArtifactLabel: r.ArtifactLabel,
		Status:        r.Status,
		CreatedOn:     r.CreatedOn,
		StartedOn:     r.StartedOn,
		EndedOn:       r.EndedOn,
	}
}

func toRunResponses(runs []store.Run) []RunResponse {
	out := make([]RunResponse, len(runs))
	for i := range runs {
		out[i] = toRunResponse(&runs[i])
	}
	return out
}

type APIKeyResponse struct {
	ID          int64     `json:"id"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	CreatedOn   time.Time `json:"created_on"`
}

func toAPIKeyResponse(ak *store.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:          ak.ID,
		Value:       ak.Value,
		Description: ak.Description,
		CreatedOn:   ak.CreatedOn,
	}
}

type CacheEntryResponse struct {
	CacheEntryID int64     `json:"cache_entry_id"`
	RunnerID     int64     `json:"runner_id"`
	CacheKey     string    `json:"cache_key"`
	ArchivePath  string    `json:"archive_path"`
	SizeBytes    int64     `json:"size_bytes"`
	CreatedOn    time.Time `json:"created_on"`
}

func toCacheEntryResponse(e *store.CacheEntry) CacheEntryResponse {
	return CacheEntryResponse{
		CacheEntryID: e.CacheEntryID,
		RunnerID:     e.CacheRunnerID,
		CacheKey:     e.CacheKey,
		ArchivePath:  e.ArchivePath,
		SizeBytes:    e.SizeBytes,
		CreatedOn:    e.CreatedOn,
	}
}

package handler

type RunnerParams struct {
	RunnerID      int64  `json:"runner_id"       param:"runner_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Hostname      string `json:"hostname"`
	Username      string `json:"username"`
	Workspace     string `json:"workspace"`
	CacheDir      string `json:"cache_dir"`
	OSType        string `json:"os_type"`
	SSHPrivateKey string `json:"ssh_private_key"`
}

type PipelineParams struct {
	PipelineID       int64  `json:"pipeline_id"        param:"pipeline_id"`
	PipelineRunnerID int64  `json:"pipeline_runner_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Repository       string `json:"repository"`
	SpecPath         string `json:"spec_path"`
	TriggerBranch    string `json:"trigger_branch"`
	OnPush           bool   `json:"on_push"`
	OnPullRequest    bool   `json:"on_pull_request"`
}

type ScheduleParams struct {
	PipelineID     int64   `param:"pipeline_id"`
	Schedule       *string `json:"schedule"`
	ScheduleBranch *string `json:"schedule_branch"`
}

type RunParams struct {
	PipelineID int64  `param:"pipeline_id"`
	RunID      int64  `param:"run_id"`
	Branch     string `json:"branch"`
	Revision   string `json:"revision"`
}

// WebhookParams is the payload a forge webhook posts to trigger a run.
type WebhookParams struct {
	PipelineID int64  `param:"pipeline_id"`
	Event      string `json:"event"`
	Branch     string `json:"branch"`
	Revision   string `json:"revision"`
}

type ListRunsParams struct {
	PipelineID int64 `param:"pipeline_id"`
	Page       int64 `query:"page"`
}

type APIKeyParams struct {
	ID          int64  `param:"id"`
	Description string `json:"description"`
}

type CacheEntryParams struct {
	RunnerID     int64 `param:"runner_id"`
	CacheEntryID int64 `param:"cache_entry_id"`
}

package store

import (
	"context"
	"time"
)

type Pipeline struct {
	PipelineID       int64
	PipelineRunnerID int64
	Name             string
	Description      string
	// Git repository path
	Repository string
	// Build spec path within the repository
	SpecPath string
	// Branch the webhook trigger is filtered to
	TriggerBranch string
	OnPush        bool
	OnPullRequest bool
	// Pipeline schedule in cron syntax
	Schedule *string
	// Git branch for scheduled runs
	ScheduleBranch *string
	// Scheduled job ID
	ScheduleJobID *string
	CreatedOn     time.Time
}

// PipelineRunData joins the pipeline with its runner for run execution.
// SSHPrivateKey holds the decrypted key, filled in by the service layer.
type PipelineRunData struct {
	PipelineID        int64
	RunnerID          int64
	OSType            string
	Repository        string
	SpecPath          string
	Hostname          string
	Workspace         string
	CacheDir          string
	Username          string
	SSHPrivateKeyHash string
	SSHPrivateKey     []byte
}

type PipelineStore interface {
	CreatePipeline(
		context.Context,
		int64,
		string, string, string, string, string,
		bool, bool,
	) (*Pipeline, error)
	ReadPipelineByID(context.Context, int64) (*Pipeline, error)
	ReadPipelineRunData(context.Context, int64) (*PipelineRunData, error)
	UpdatePipeline(
		context.Context,
		int64, int64,
		string, string, string, string, string,
		bool, bool,
	) error
	UpdatePipelineSchedule(context.Context, int64, *string, *string, *string) error
	UpdatePipelineScheduleJobID(context.Context, int64, *string) error
	DeletePipeline(context.Context, int64) error
	ListPipelines(context.Context) ([]*Pipeline, error)
	ListScheduledPipelines(context.Context) ([]*Pipeline, error)
}

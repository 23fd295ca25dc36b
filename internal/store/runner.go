package store

import (
	"context"
	"time"
)

// Runner is a build host reached over SSH. The SSH private key is stored
// AES-GCM encrypted in SSHPrivateKeyHash.
type Runner struct {
	RunnerID          int64
	Name              string
	Description       string
	Hostname          string
	Username          string
	Workspace         string
	CacheDir          string
	OSType            string
	SSHPrivateKeyHash string
	CreatedOn         time.Time
}

type RunnerStore interface {
	CreateRunner(
		context.Context,
		string, string, string, string, string, string, string, string,
	) (*Runner, error)
	ReadRunnerByID(context.Context, int64) (*Runner, error)
	UpdateRunner(
		context.Context,
		int64,
		string, string, string, string, string, string, string,
	) error
	DeleteRunner(context.Context, int64) error
	ListRunners(context.Context) ([]*Runner, error)
}

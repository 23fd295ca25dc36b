package service

import (
	"context"
	"time"

	"github.com/savefuksd/forgeci/internal/security"
	"github.com/savefuksd/forgeci/internal/store"
)

type RunnerServicer interface {
	CreateRunner(
		ctx context.Context,
		name, description, hostname, username, workspace, cacheDir, osType, sshPrivateKey string,
	) (*store.Runner, error)
	GetRunnerByID(context.Context, int64) (*store.Runner, error)
	ListRunners(context.Context) ([]*store.Runner, error)
	UpdateRunner(
		ctx context.Context,
		id int64,
		name, description, hostname, username, workspace, cacheDir, osType string,
	) error
	DeleteRunner(context.Context, int64) error

	TestRunnerConnection(context.Context, int64) error
}

type RunnerService struct {
	runnerStore  store.RunnerStore
	aesEncrypter security.Encrypter
}

func NewRunnerService(s store.RunnerStore, aesEncrypter security.Encrypter) *RunnerService {
	return &RunnerService{runnerStore: s, aesEncrypter: aesEncrypter}
}

func (s *RunnerService) CreateRunner(
	ctx context.Context,
	name, description, hostname, username, workspace, cacheDir, osType, sshPrivateKey string,
) (*store.Runner, error) {
	keyHash := s.aesEncrypter.EncryptAES(sshPrivateKey)
	return s.runnerStore.CreateRunner(
		ctx,
		name,
		description,
		hostname,
		username,
		workspace,
		cacheDir,
		osType,
		keyHash,
	)
}

func (s *RunnerService) GetRunnerByID(ctx context.Context, id int64) (*store.Runner, error) {
	return s.runnerStore.ReadRunnerByID(ctx, id)
}

func (s *RunnerService) ListRunners(ctx context.Context) ([]*store.Runner, error) {
	return s.runnerStore.ListRunners(ctx)
}

func (s *RunnerService) UpdateRunner(
	ctx context.Context,
	id int64,
	name, description, hostname, username, workspace, cacheDir, osType string,
) error {
	return s.runnerStore.UpdateRunner(
		ctx,
		id,
		name,
		description,
		hostname,
		username,
		workspace,
		cacheDir,
		osType,
	)
}

func (s *RunnerService) DeleteRunner(ctx context.Context, id int64) error {
	return s.runnerStore.DeleteRunner(ctx, id)
}

// TestRunnerConnection dials the runner and runs a trivial command to verify
// the stored credentials.
func (s *RunnerService) TestRunnerConnection(ctx context.Context, id int64) error {
	r, err := s.GetRunnerByID(ctx, id)
	if err != nil {
		return err
	}

	privateKey, err := s.aesEncrypter.DecryptAES(r.SSHPrivateKeyHash)
	if err != nil {
		return err
	}

	client, err := connectSSH(r.Username, r.Hostname, privateKey)
	if err != nil {
		return err
	}
	defer client.Close()

	_, _, err = runCommand(ctx, client, "true", 10*time.Second)
	return err
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/savefuksd/forgeci/internal/util"
	"github.com/stretchr/testify/assert"
)

func generateTestPipeline(t *testing.T, r *Runner) *Pipeline {
	t.Helper()
	p, err := pipelineStore.CreatePipeline(
		context.Background(),
		r.RunnerID,
		"pipeline-"+uuid.NewString(),
		"test pipeline",
		"https://github.com/acme/clash.git",
		".forgeci.yml",
		"master",
		true,
		false,
	)
	assert.NoError(t, err)
	return p
}

func TestPipelineSQLiteStore_CreatePipeline(t *testing.T) {
	t.Run("success - pipeline created", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		name := "pipeline-" + uuid.NewString()

		// act
		p, err := pipelineStore.CreatePipeline(
			context.Background(),
			r.RunnerID, name, "desc",
			"https://github.com/acme/clash.git", ".forgeci.yml", "main",
			true, true,
		)

		// assert
		assert.NoError(t, err)
		assert.NotEqual(t, 0, p.PipelineID)
		assert.Equal(t, r.RunnerID, p.PipelineRunnerID)
		assert.Equal(t, name, p.Name)
		assert.True(t, p.OnPush)
		assert.True(t, p.OnPullRequest)
		assert.Nil(t, p.Schedule)
	})

	t.Run("failure - duplicate name", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		existing := generateTestPipeline(t, r)

		// act
		_, err := pipelineStore.CreatePipeline(
			context.Background(),
			r.RunnerID, existing.Name, "desc",
			"https://github.com/acme/clash.git", ".forgeci.yml", "master",
			true, false,
		)

		// assert
		assert.Error(t, err)
	})

	t.Run("failure - unknown runner", func(t *testing.T) {
		// act
		_, err := pipelineStore.CreatePipeline(
			context.Background(),
			424242, "pipeline-"+uuid.NewString(), "desc",
			"https://github.com/acme/clash.git", ".forgeci.yml", "master",
			true, false,
		)

		// assert
		assert.Error(t, err)
	})
}

func TestPipelineSQLiteStore_ReadPipelineByID(t *testing.T) {
	t.Run("success - pipeline found", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		expected := generateTestPipeline(t, r)

		// act
		p, err := pipelineStore.ReadPipelineByID(context.Background(), expected.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, expected.Name, p.Name)
		assert.Equal(t, ".forgeci.yml", p.SpecPath)
		assert.Equal(t, "master", p.TriggerBranch)
		assert.False(t, p.CreatedOn.IsZero())
	})

	t.Run("failure - pipeline not found", func(t *testing.T) {
		// act
		p, err := pipelineStore.ReadPipelineByID(context.Background(), 424242)

		// assert
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, p)
	})
}

func TestPipelineSQLiteStore_ReadPipelineRunData(t *testing.T) {
	t.Run("success - joins runner connection details", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		p := generateTestPipeline(t, r)

		// act
		prd, err := pipelineStore.ReadPipelineRunData(context.Background(), p.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, p.PipelineID, prd.PipelineID)
		assert.Equal(t, p.Repository, prd.Repository)
		assert.Equal(t, p.SpecPath, prd.SpecPath)
		assert.Equal(t, r.RunnerID, prd.RunnerID)
		assert.Equal(t, r.Hostname, prd.Hostname)
		assert.Equal(t, r.Username, prd.Username)
		assert.Equal(t, r.Workspace, prd.Workspace)
		assert.Equal(t, r.CacheDir, prd.CacheDir)
		assert.Equal(t, r.SSHPrivateKeyHash, prd.SSHPrivateKeyHash)
	})

	t.Run("failure - pipeline not found", func(t *testing.T) {
		// act
		prd, err := pipelineStore.ReadPipelineRunData(context.Background(), 424242)

		// assert
		assert.True(t, errors.Is(err, sql.ErrNoRows))
		assert.Nil(t, prd)
	})
}

func TestPipelineSQLiteStore_UpdatePipeline(t *testing.T) {
	t.Run("success - pipeline updates", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		p := generateTestPipeline(t, r)
		newName := "pipeline-" + uuid.NewString()

		// act
		updateErr := pipelineStore.UpdatePipeline(
			context.Background(),
			p.PipelineID, r.RunnerID,
			newName, "new desc",
			"https://github.com/acme/other.git", "ci/build.yml", "develop",
			false, true,
		)
		updated, readErr := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)

		// assert
		assert.NoError(t, updateErr)
		assert.NoError(t, readErr)
		assert.Equal(t, newName, updated.Name)
		assert.Equal(t, "ci/build.yml", updated.SpecPath)
		assert.Equal(t, "develop", updated.TriggerBranch)
		assert.False(t, updated.OnPush)
		assert.True(t, updated.OnPullRequest)
	})
}

func TestPipelineSQLiteStore_UpdatePipelineSchedule(t *testing.T) {
	t.Run("success - schedule set", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		p := generateTestPipeline(t, r)

		// act
		err := pipelineStore.UpdatePipelineSchedule(
			context.Background(),
			p.PipelineID,
			util.AsPtr("0 4 * * *"),
			util.AsPtr("master"),
			util.AsPtr(uuid.NewString()),
		)
		updated, readErr := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.NotNil(t, updated.Schedule)
		assert.Equal(t, "0 4 * * *", *updated.Schedule)
		assert.Equal(t, "master", *updated.ScheduleBranch)
		assert.NotNil(t, updated.ScheduleJobID)
	})

	t.Run("success - schedule cleared", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		p := generateTestPipeline(t, r)
		err := pipelineStore.UpdatePipelineSchedule(
			context.Background(),
			p.PipelineID,
			util.AsPtr("0 4 * * *"),
			util.AsPtr("master"),
			util.AsPtr(uuid.NewString()),
		)
		assert.NoError(t, err)

		// act
		err = pipelineStore.UpdatePipelineSchedule(
			context.Background(), p.PipelineID, nil, nil, nil,
		)
		updated, readErr := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)

		// assert
		assert.NoError(t, err)
		assert.NoError(t, readErr)
		assert.Nil(t, updated.Schedule)
		assert.Nil(t, updated.ScheduleBranch)
		assert.Nil(t, updated.ScheduleJobID)
	})
}

func TestPipelineSQLiteStore_ListScheduledPipelines(t *testing.T) {
	t.Run("success - only scheduled pipelines returned", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		scheduled := generateTestPipeline(t, r)
		unscheduled := generateTestPipeline(t, r)
		err := pipelineStore.UpdatePipelineSchedule(
			context.Background(),
			scheduled.PipelineID,
			util.AsPtr("30 2 * * 1"),
			util.AsPtr("master"),
			nil,
		)
		assert.NoError(t, err)

		// act
		pipelines, err := pipelineStore.ListScheduledPipelines(context.Background())

		// assert
		assert.NoError(t, err)
		ids := make([]int64, 0, len(pipelines))
		for _, p := range pipelines {
			ids = append(ids, p.PipelineID)
		}
		assert.Contains(t, ids, scheduled.PipelineID)
		assert.NotContains(t, ids, unscheduled.PipelineID)
	})
}

func TestPipelineSQLiteStore_DeletePipeline(t *testing.T) {
	t.Run("success - pipeline deleted with its runs", func(t *testing.T) {
		// arrange
		r := generateRunner(t)
		p := generateTestPipeline(t, r)
		run := generateTestRun(t, p)

		// act
		deleteErr := pipelineStore.DeletePipeline(context.Background(), p.PipelineID)
		_, pipelineReadErr := pipelineStore.ReadPipelineByID(context.Background(), p.PipelineID)
		_, runReadErr := runStore.ReadRunByID(context.Background(), run.RunID)

		// assert
		assert.NoError(t, deleteErr)
		assert.True(t, errors.Is(pipelineReadErr, sql.ErrNoRows))
		assert.True(t, errors.Is(runReadErr, sql.ErrNoRows))
	})
}

package service

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/savefuksd/forgeci/internal"
	"github.com/savefuksd/forgeci/internal/store"
	"github.com/savefuksd/forgeci/internal/util"
)

const (
	cloneTimeout        = 10 * time.Minute
	readFileTimeout     = 15 * time.Second
	cacheRestoreTimeout = 15 * time.Minute
	cacheSaveTimeout    = 30 * time.Minute
	toolchainTimeout    = 30 * time.Minute
	protocTimeout       = 10 * time.Minute
	buildTimeout        = 60 * time.Minute
	stageTimeout        = 30 * time.Second
)

func (rq *RunQueue) processRun(ctx context.Context, run *store.Run) error {
	prd, err := rq.pipelineService.GetPipelineRunData(ctx, run.RunPipelineID)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err getting pipeline run data: %+v\n", err)
		return err
	}
	workdir := time.Now().UTC().Format(internal.RunDirLayout)

	run.Status = store.StatusRunning
	run.StartedOn = util.AsPtr(time.Now().UTC())

	if err := rq.pipelineService.UpdateRunStartedOn(
		context.Background(),
		run.RunID,
		workdir,
		run.Status,
		run.StartedOn,
	); err != nil {
		rq.outputCh <- "err updating run started on\n"
		return err
	}

	r, err := rq.pipelineService.GetRunByID(context.Background(), run.RunID)
	if err != nil {
		rq.outputCh <- "err getting run by ID\n"
		return err
	}
	run = r
	rq.statusCh <- *r

	runner, err := rq.connectRunner(prd.Username, prd.Hostname, prd.SSHPrivateKey)
	if err != nil {
		rq.outputCh <- "Error connecting through SSH.\n"
		return err
	}
	defer runner.Close()
	rq.outputCh <- fmt.Sprintf("SSH connected to %s\n", prd.Hostname)

	// step 1: checkout
	repoDir := RepoDirFromURL(prd.Repository)
	if err := rq.checkoutRepository(ctx, runner, prd, workdir, run); err != nil {
		rq.outputCh <- "err checking out repository on runner\n"
		return err
	}
	rq.outputCh <- fmt.Sprintf("Checked out %s (%s)\n", prd.Repository, run.Branch)

	specYaml, _, err := rq.runInRepo(
		ctx, runner, prd, workdir, repoDir,
		fmt.Sprintf("cat %s", prd.SpecPath),
		readFileTimeout,
	)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err reading build spec %s\n", prd.SpecPath)
		return err
	}
	bs, err := ParseBuildSpec([]byte(specYaml))
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err parsing build spec: %+v\n", err)
		return err
	}
	rq.outputCh <- "Parsed build spec. Starting build...\n"

	// step 2: restore dependency cache
	cacheKey, exactHit := rq.restoreCache(ctx, runner, prd, workdir, repoDir, bs, run.RunID)

	// step 3: toolchain
	for _, cmd := range ToolchainInstallCommands(bs.Toolchain.Version) {
		rq.outputCh <- fmt.Sprintf("$ %s\n", cmd)
		if err := rq.streamInDir(ctx, runner, prd, workdir, repoDir, cmd, toolchainTimeout); err != nil {
			return err
		}
	}
	rq.outputCh <- fmt.Sprintf("Toolchain %s installed\n", bs.Toolchain.Version)

	// step 4: protoc
	if err := rq.ensureProtoc(ctx, runner, prd, workdir, repoDir, bs.Protoc); err != nil {
		return err
	}

	// step 5: build
	buildDir := repoDir
	if bs.Build.Workdir != "" {
		buildDir = path.Join(repoDir, bs.Build.Workdir)
	}
	buildCmd := BuildCommand(bs.Build.Target)
	rq.outputCh <- fmt.Sprintf("$ %s\n", buildCmd)
	if err := rq.streamInDir(ctx, runner, prd, workdir, buildDir, buildCmd, buildTimeout); err != nil {
		return err
	}

	// step 6: verify and stage the artifact
	outputPath := BuildOutputPath(bs.Build.Target, bs.Build.Binary)
	if _, _, err := rq.runInRepo(
		ctx, runner, prd, workdir, buildDir,
		VerifyFileCommand(outputPath),
		readFileTimeout,
	); err != nil {
		if _, ok := err.(RunCancelError); ok {
			return err
		}
		rq.outputCh <- fmt.Sprintf("build output %s not found\n", outputPath)
		return ErrArtifactMissing{Path: outputPath}
	}

	fileName := ArtifactFileName(bs.Artifact.Prefix, bs.Toolchain.Version, bs.Build.Target)
	if _, _, err := rq.runInRepo(
		ctx, runner, prd, workdir, buildDir,
		StageArtifactCommand(outputPath, bs.Artifact.Staging, fileName),
		stageTimeout,
	); err != nil {
		rq.outputCh <- "err staging artifact\n"
		return err
	}
	rq.outputCh <- fmt.Sprintf("Staged artifact %s\n", fileName)

	// step 7: publish the artifact to the server
	remotePath := path.Join(prd.Workspace, workdir, buildDir, bs.Artifact.Staging, fileName)
	localPath := filepath.Join(
		rq.artifactRoot,
		strconv.FormatInt(run.RunPipelineID, 10),
		strconv.FormatInt(run.RunID, 10),
		fileName,
	)
	if err := runner.Download(remotePath, localPath); err != nil {
		rq.outputCh <- "err downloading artifact from runner\n"
		return err
	}
	rq.outputCh <- fmt.Sprintf("Published artifact to %s\n", localPath)

	// a run that restored an exact cache hit has nothing new to save
	if bs.Cache.Enabled() && cacheKey != "" && !exactHit {
		rq.saveCache(ctx, runner, prd, cacheKey, bs.Cache.Paths)
	}

	passMessage := `
=============================================
PASS || Build run completed successfully.
=============================================
`
	rq.outputCh <- passMessage

	run.Status = store.StatusPassed
	run.EndedOn = util.AsPtr(time.Now().UTC())
	if err := rq.pipelineService.UpdateRunEndedOn(
		context.Background(),
		run.RunID,
		run.Status,
		util.AsPtr(bs.Artifact.Label),
		util.AsPtr(localPath),
		run.EndedOn,
	); err != nil {
		rq.outputCh <- "err updating run ended on\n"
		return err
	}

	r, err = rq.pipelineService.GetRunByID(context.Background(), run.RunID)
	if err != nil {
		rq.outputCh <- "err getting run by id\n"
		return err
	}

	run = r
	rq.statusCh <- *r

	return nil
}

// checkoutRepository clones the pipeline repository with submodules into a
// fresh run directory and, for webhook runs carrying a revision, detaches to
// that exact commit.
func (rq *RunQueue) checkoutRepository(
	ctx context.Context,
	runner remoteRunner,
	prd *store.PipelineRunData,
	workdir string,
	run *store.Run,
) error {
	if _, _, err := runner.Run(
		ctx,
		fmt.Sprintf("mkdir -p %s/%s", prd.Workspace, workdir),
		5*time.Second,
	); err != nil {
		return err
	}
	if _, _, err := runner.Run(
		ctx,
		inWorkdir(prd.Workspace, workdir, CloneCommand(prd.Repository, run.Branch)),
		cloneTimeout,
	); err != nil {
		return err
	}
	if run.Revision != "" {
		repoDir := RepoDirFromURL(prd.Repository)
		if _, _, err := rq.runInRepo(
			ctx, runner, prd, workdir, repoDir,
			CheckoutRevisionCommand(run.Revision),
			cloneTimeout,
		); err != nil {
			return err
		}
	}
	return nil
}

// restoreCache computes the manifest-hash cache key and restores the best
// available archive. Cache failures degrade the run to a cold build instead
// of failing it, so every error here ends up in the run output only.
func (rq *RunQueue) restoreCache(
	ctx context.Context,
	runner remoteRunner,
	prd *store.PipelineRunData,
	workdir, repoDir string,
	bs *BuildSpec,
	runID int64,
) (string, bool) {
	if !bs.Cache.Enabled() {
		return "", false
	}

	manifest, _, err := rq.runInRepo(
		ctx, runner, prd, workdir, repoDir,
		fmt.Sprintf("cat %s", bs.Cache.Manifest),
		readFileTimeout,
	)
	if err != nil {
		rq.outputCh <- fmt.Sprintf(
			"cache disabled for this run: err reading manifest %s: %+v\n",
			bs.Cache.Manifest, err,
		)
		return "", false
	}

	key := CacheKey(bs.Cache.Prefix, []byte(manifest))
	entry, exact, err := rq.cacheService.LookupEntry(
		ctx, prd.RunnerID, key, RestoreKeyPrefix(bs.Cache.Prefix),
	)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err looking up cache entry: %+v\n", err)
		return key, false
	}
	if err := rq.pipelineService.UpdateRunCacheKey(
		context.Background(), runID, key, exact,
	); err != nil {
		rq.outputCh <- "err updating run cache key\n"
	}
	if entry == nil {
		rq.outputCh <- fmt.Sprintf("Cache miss for key %s, cold build\n", key)
		return key, false
	}

	if _, _, err := runner.Run(
		ctx, RestoreCacheCommand(entry.ArchivePath), cacheRestoreTimeout,
	); err != nil {
		rq.outputCh <- fmt.Sprintf("err restoring cache archive %s: %+v\n", entry.ArchivePath, err)
		return key, false
	}
	if exact {
		rq.outputCh <- fmt.Sprintf("Restored cache (exact hit) %s\n", entry.CacheKey)
	} else {
		rq.outputCh <- fmt.Sprintf("Restored cache (prefix fallback) %s\n", entry.CacheKey)
	}
	return key, exact
}

// saveCache archives the cache paths on the runner and records the entry.
// Like restore, failures are reported to the run output but never fail the
// run itself.
func (rq *RunQueue) saveCache(
	ctx context.Context,
	runner remoteRunner,
	prd *store.PipelineRunData,
	key string,
	paths []string,
) {
	archivePath := CacheArchivePath(prd.CacheDir, key)
	if _, _, err := runner.Run(
		ctx, SaveCacheCommand(archivePath, paths), cacheSaveTimeout,
	); err != nil {
		rq.outputCh <- fmt.Sprintf("err saving cache archive: %+v\n", err)
		return
	}
	size, err := runner.FileSize(archivePath)
	if err != nil {
		rq.outputCh <- fmt.Sprintf("err reading cache archive size: %+v\n", err)
	}
	if _, err := rq.cacheService.SaveEntry(
		context.Background(), prd.RunnerID, key, archivePath, size,
	); err != nil {
		rq.outputCh <- fmt.Sprintf("err recording cache entry: %+v\n", err)
		return
	}
	rq.outputCh <- fmt.Sprintf("Saved cache entry %s\n", key)
}

// ensureProtoc checks the protoc on the runner against the pinned major
// version, installing it when absent or mismatched.
func (rq *RunQueue) ensureProtoc(
	ctx context.Context,
	runner remoteRunner,
	prd *store.PipelineRunData,
	workdir, repoDir string,
	spec ProtocSpec,
) error {
	if spec.Major == 0 {
		return nil
	}

	stdout, _, err := rq.runInRepo(
		ctx, runner, prd, workdir, repoDir,
		ProtocVersionCommand,
		readFileTimeout,
	)
	if err == nil {
		if major, perr := ParseProtocMajor(stdout); perr == nil && major == spec.Major {
			rq.outputCh <- fmt.Sprintf("protoc major %d already present\n", major)
			return nil
		}
	}
	if _, ok := err.(RunCancelError); ok {
		return err
	}

	if spec.Install == "" {
		return fmt.Errorf("protoc major %d required but not installed on runner", spec.Major)
	}

	rq.outputCh <- fmt.Sprintf("$ %s\n", spec.Install)
	if err := rq.streamInDir(ctx, runner, prd, workdir, repoDir, spec.Install, protocTimeout); err != nil {
		return err
	}

	stdout, _, err = rq.runInRepo(
		ctx, runner, prd, workdir, repoDir,
		ProtocVersionCommand,
		readFileTimeout,
	)
	if err != nil {
		return fmt.Errorf("err checking protoc version after install: %w", err)
	}
	major, err := ParseProtocMajor(stdout)
	if err != nil {
		return err
	}
	if major != spec.Major {
		return fmt.Errorf("protoc major %d required, found %d after install", spec.Major, major)
	}
	rq.outputCh <- fmt.Sprintf("protoc major %d installed\n", major)
	return nil
}

func inWorkdir(workspace, workdir, command string) string {
	return fmt.Sprintf("cd %s && cd %s && %s", workspace, workdir, command)
}

func (rq *RunQueue) runInRepo(
	ctx context.Context,
	runner remoteRunner,
	prd *store.PipelineRunData,
	workdir, dir, command string,
	timeout time.Duration,
) (string, string, error) {
	return runner.Run(
		ctx,
		inWorkdir(prd.Workspace, workdir, fmt.Sprintf("cd %s && %s", dir, command)),
		timeout,
	)
}

func (rq *RunQueue) streamInDir(
	ctx context.Context,
	runner remoteRunner,
	prd *store.PipelineRunData,
	workdir, dir, command string,
	timeout time.Duration,
) error {
	cmd := inWorkdir(prd.Workspace, workdir, fmt.Sprintf("cd %s && %s", dir, command))
	return runner.Stream(ctx, rq.outputCh, cmd, timeout)
}

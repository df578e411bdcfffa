package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types/container"
	typesimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"dsacoach/internal/domain/execution"
	"dsacoach/internal/logging"
)

const (
	defaultMaxProcesses = 64
	// maxLogBytes caps each captured stream; a submission printing in a loop
	// must not exhaust host memory.
	maxLogBytes = 256 << 10
	oneCPU      = 1_000_000_000
	pullTimeout = 5 * time.Minute
)

// sandbox starts one throwaway container per run. The container is offline,
// unprivileged and bounded in memory, processes and wall time.
type sandbox struct {
	cli          dockerClient
	defaults     execution.RunLimits
	user         string
	allowNetwork bool
	logger       logging.Logger
}

// runRequest describes a single program run.
type runRequest struct {
	image     string
	workdir   string
	limits    execution.RunLimits
	command   []string
	files     []fileSpec
	artifacts []string
}

func newSandbox(cli dockerClient, cfg Config) *sandbox {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &sandbox{
		cli:          cli,
		defaults:     clampLimits(cfg.DefaultLimits),
		user:         cfg.User,
		allowNetwork: cfg.AllowNetwork,
		logger:       logger,
	}
}

func clampLimits(l execution.RunLimits) execution.RunLimits {
	l.TimeLimit = max(l.TimeLimit, 0)
	l.MemoryLimitBytes = max(l.MemoryLimitBytes, 0)
	l.MaxProcesses = max(l.MaxProcesses, 0)
	return l
}

// limitsFor applies the configured defaults to a request. A process cap is
// always set.
func (s *sandbox) limitsFor(requested execution.RunLimits) execution.RunLimits {
	limits := clampLimits(requested).Merge(s.defaults)
	if limits.MaxProcesses == 0 {
		limits.MaxProcesses = defaultMaxProcesses
	}
	return limits
}

// ensureImage makes ref available locally, pulling it only when the daemon
// does not have it yet. The work is detached from ctx so one impatient caller
// cannot abort a pull that later runs are waiting on.
func (s *sandbox) ensureImage(ctx context.Context, ref string) error {
	pullCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pullTimeout)
	defer cancel()

	if _, _, err := s.cli.ImageInspectWithRaw(pullCtx, ref); err == nil {
		return nil
	}

	progress, err := s.cli.ImagePull(pullCtx, ref, typesimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer progress.Close()
	if _, err := io.Copy(io.Discard, progress); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

func (s *sandbox) run(ctx context.Context, req runRequest) (*execution.Result, error) {
	limits := s.limitsFor(req.limits)

	id, err := s.create(ctx, req, limits)
	if err != nil {
		return nil, err
	}
	defer s.remove(id)

	if len(req.files) > 0 {
		archive, err := makeArchive(req.files)
		if err != nil {
			return nil, err
		}
		if err := s.cli.CopyToContainer(ctx, id, req.workdir, archive, copyOptions); err != nil {
			return nil, fmt.Errorf("copy files: %w", err)
		}
	}

	start := time.Now()
	if err := s.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	exit, timedOut, err := s.wait(ctx, id, limits.TimeLimit)
	if err != nil {
		return nil, err
	}
	duration := time.Since(start)

	// Finish bookkeeping even if the caller gave up while the program ran.
	post := context.WithoutCancel(ctx)

	stdout, stderr, err := s.logs(post, id)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	result := &execution.Result{
		Status:   execution.StatusOK,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exit,
		Duration: duration,
	}
	if timedOut {
		result.Status = execution.StatusTimeLimit
		return result, nil
	}

	inspect, err := s.cli.ContainerInspect(post, id)
	if err != nil {
		return nil, fmt.Errorf("inspect container: %w", err)
	}
	if inspect.ContainerJSONBase != nil && inspect.State != nil && inspect.State.OOMKilled {
		result.Status = execution.StatusMemoryLimit
	}
	result.Artifacts = s.collect(post, id, req.workdir, req.artifacts)

	return result, nil
}

func (s *sandbox) create(ctx context.Context, req runRequest, limits execution.RunLimits) (string, error) {
	resp, err := s.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           req.image,
			Cmd:             req.command,
			User:            s.user,
			WorkingDir:      req.workdir,
			Env:             []string{"PYTHONDONTWRITEBYTECODE=1", "PYTHONUNBUFFERED=1"},
			AttachStdout:    true,
			AttachStderr:    true,
			NetworkDisabled: !s.allowNetwork,
		},
		s.hostConfig(limits),
		nil, nil, "",
	)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	return resp.ID, nil
}

func (s *sandbox) hostConfig(limits execution.RunLimits) *container.HostConfig {
	hc := &container.HostConfig{
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
		Resources: container.Resources{
			NanoCPUs: oneCPU,
		},
	}
	if !s.allowNetwork {
		hc.NetworkMode = "none"
	}
	if limits.MemoryLimitBytes > 0 {
		hc.Resources.Memory = limits.MemoryLimitBytes
		hc.Resources.MemorySwap = limits.MemoryLimitBytes
	}
	if limits.MaxProcesses > 0 {
		pids := limits.MaxProcesses
		hc.Resources.PidsLimit = &pids
	}
	return hc
}

// remove force-deletes a finished container. A failure leaves the container
// behind on the host, so it is logged with the id for manual cleanup.
func (s *sandbox) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := s.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		s.logger.Warn("Failed to remove sandbox container", "container_id", id, "error", err)
	}
}

// wait blocks until the container exits. When the time limit elapses first
// the container is killed outright and timedOut is set.
func (s *sandbox) wait(ctx context.Context, id string, limit time.Duration) (exit int64, timedOut bool, err error) {
	waitCtx := ctx
	if limit > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, limit)
		defer cancel()
	}

	exit, err = s.waitForExit(waitCtx, id)
	if err == nil {
		return exit, false, nil
	}
	if !errors.Is(err, context.DeadlineExceeded) || limit <= 0 || ctx.Err() != nil {
		return 0, false, err
	}

	exit, err = s.kill(id)
	return exit, true, err
}

func (s *sandbox) kill(id string) (int64, error) {
	killCtx, cancelKill := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelKill()
	if err := s.cli.ContainerKill(killCtx, id, "SIGKILL"); err != nil && !client.IsErrNotFound(err) {
		return 0, fmt.Errorf("kill container after time limit: %w", err)
	}

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelWait()
	exit, err := s.waitForExit(waitCtx, id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || client.IsErrNotFound(err) {
			return -1, nil
		}
		return 0, fmt.Errorf("wait for container after time limit: %w", err)
	}
	return exit, nil
}

func (s *sandbox) waitForExit(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := s.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return 0, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return status.StatusCode, nil
	case err := <-errCh:
		return 0, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return 0, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

func (s *sandbox) logs(ctx context.Context, id string) (stdout, stderr string, err error) {
	stream, err := s.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", err
	}
	defer stream.Close()

	out := &cappedBuffer{limit: maxLogBytes}
	errOut := &cappedBuffer{limit: maxLogBytes}
	if _, err := stdcopy.StdCopy(out, errOut, stream); err != nil {
		return "", "", err
	}
	return out.String(), errOut.String(), nil
}

// cappedBuffer keeps the first limit bytes written to it and discards the
// rest while still reporting full writes.
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.Buffer.String() + "\n... output truncated"
	}
	return b.Buffer.String()
}

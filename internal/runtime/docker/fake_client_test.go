package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	specs "github.com/opencontainers/image-spec/specs-go/v1"
)

// fakeContainer is the scripted behaviour of one container. Tests set the
// fields from fakeDocker.program before the container starts.
type fakeContainer struct {
	id         string
	config     *container.Config
	hostConfig *container.HostConfig

	// copied holds files received through CopyToContainer, keyed by absolute path.
	copied map[string][]byte
	// written holds files the "program" leaves behind, keyed by absolute path.
	written map[string][]byte
	dirs    map[string]bool

	exitCode int64
	hang     bool
	oom      bool
	stdout   string
	stderr   string

	started bool
	killed  chan struct{}
	signal  string
	removed bool
}

type fakeDocker struct {
	mu         sync.Mutex
	nextID     int
	pulls      []string
	pullErr    error
	inspects   int
	removeErr  error
	// local lists images the daemon already has; a successful pull adds to it.
	local map[string]bool
	closed     bool
	containers []*fakeContainer
	byID       map[string]*fakeContainer

	// program configures every newly created container.
	program func(c *fakeContainer)
}

var _ dockerClient = (*fakeDocker)(nil)

func newFakeDocker(program func(c *fakeContainer)) *fakeDocker {
	return &fakeDocker{byID: make(map[string]*fakeContainer), local: make(map[string]bool), program: program}
}

func (f *fakeDocker) get(id string) (*fakeContainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("no such container: %s", id)
	}
	return c, nil
}

func (f *fakeDocker) last() *fakeContainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.containers) == 0 {
		return nil
	}
	return f.containers[len(f.containers)-1]
}

func (f *fakeDocker) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDocker) ImageInspectWithRaw(ctx context.Context, ref string) (types.ImageInspect, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspects++
	if !f.local[ref] {
		return types.ImageInspect{}, nil, fmt.Errorf("No such image: %s", ref)
	}
	return types.ImageInspect{ID: "sha256:" + ref, RepoTags: []string{ref}}, nil, nil
}

func (f *fakeDocker) setPullErr(err error) {
	f.mu.Lock()
	f.pullErr = err
	f.mu.Unlock()
}

func (f *fakeDocker) pullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pulls)
}

func (f *fakeDocker) ImagePull(ctx context.Context, ref string, opts image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulls = append(f.pulls, ref)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	f.local[ref] = true
	return io.NopCloser(bytes.NewReader([]byte(`{"status":"Downloaded"}`))), nil
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *specs.Platform, containerName string) (container.CreateResponse, error) {
	c := &fakeContainer{
		config:     config,
		hostConfig: hostConfig,
		copied:     make(map[string][]byte),
		written:    make(map[string][]byte),
		dirs:       make(map[string]bool),
		killed:     make(chan struct{}),
	}
	if f.program != nil {
		f.program(c)
	}

	f.mu.Lock()
	c.id = fmt.Sprintf("sandbox-%d", f.nextID)
	f.nextID++
	f.containers = append(f.containers, c)
	f.byID[c.id] = c
	f.mu.Unlock()

	return container.CreateResponse{ID: c.id}, nil
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, id string, options container.RemoveOptions) error {
	c, err := f.get(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	c.removed = true
	return nil
}

func (f *fakeDocker) CopyToContainer(ctx context.Context, id, dstPath string, content io.Reader, options types.CopyToContainerOptions) error {
	c, err := f.get(id)
	if err != nil {
		return err
	}
	tr := tar.NewReader(content)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return err
		}
		f.mu.Lock()
		c.copied[path.Join(dstPath, header.Name)] = data
		f.mu.Unlock()
	}
}

func (f *fakeDocker) CopyFromContainer(ctx context.Context, id, srcPath string) (io.ReadCloser, types.ContainerPathStat, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, types.ContainerPathStat{}, err
	}

	f.mu.Lock()
	data, isFile := c.written[srcPath]
	isDir := c.dirs[srcPath]
	f.mu.Unlock()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	switch {
	case isFile:
		_ = tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: path.Base(srcPath), Mode: 0o644, Size: int64(len(data))})
		_, _ = tw.Write(data)
	case isDir:
		_ = tw.WriteHeader(&tar.Header{Typeflag: tar.TypeDir, Name: path.Base(srcPath) + "/", Mode: 0o755})
	default:
		return nil, types.ContainerPathStat{}, fmt.Errorf("could not find the file %s in container %s", srcPath, id)
	}
	_ = tw.Close()
	return io.NopCloser(&buf), types.ContainerPathStat{Name: path.Base(srcPath)}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, id string, options container.StartOptions) error {
	c, err := f.get(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	c.started = true
	f.mu.Unlock()
	return nil
}

func (f *fakeDocker) ContainerWait(ctx context.Context, id string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	statusCh := make(chan container.WaitResponse, 1)
	errCh := make(chan error, 1)

	c, err := f.get(id)
	if err != nil {
		errCh <- err
		return statusCh, errCh
	}

	go func() {
		if c.hang {
			select {
			case <-c.killed:
				statusCh <- container.WaitResponse{StatusCode: 137}
			case <-ctx.Done():
				errCh <- ctx.Err()
			}
			return
		}
		statusCh <- container.WaitResponse{StatusCode: c.exitCode}
	}()
	return statusCh, errCh
}

func (f *fakeDocker) ContainerKill(ctx context.Context, id, signal string) error {
	c, err := f.get(id)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.signal == "" {
		c.signal = signal
		close(c.killed)
	}
	return nil
}

func (f *fakeDocker) ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error) {
	c, err := f.get(id)
	if err != nil {
		return types.ContainerJSON{}, err
	}
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			ID:    id,
			State: &types.ContainerState{OOMKilled: c.oom, ExitCode: int(c.exitCode)},
		},
	}, nil
}

func (f *fakeDocker) ContainerLogs(ctx context.Context, id string, options container.LogsOptions) (io.ReadCloser, error) {
	c, err := f.get(id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if c.stdout != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(c.stdout))
	}
	if c.stderr != "" {
		_, _ = stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(c.stderr))
	}
	return io.NopCloser(&buf), nil
}

func tarOf(t *testing.T, name string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Typeflag: tar.TypeReg, Name: name, Mode: 0o644, Size: int64(len(data))}); err != nil {
		t.Fatalf("write tar header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("write tar contents: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	return buf.Bytes()
}

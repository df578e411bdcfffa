package docker

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/client"

	"dsacoach/internal/domain/execution"
	runtimex "dsacoach/internal/runtime"
)

// Engine runs scripts in locked-down, single-use Docker containers.
type Engine struct {
	registry *runtimex.Registry
	client   dockerClient
}

var _ runtimex.Engine = (*Engine)(nil)

// New connects to the Docker daemon from the environment and registers a
// module per configured language.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("docker runtime: at least one language must be configured")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create client: %w", err)
	}

	engine, err := newEngineWithClient(cli, cfg)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}
	return engine, nil
}

func newEngineWithClient(cli dockerClient, cfg Config) (*Engine, error) {
	sb := newSandbox(cli, cfg)

	modules := make([]runtimex.Module, 0, len(cfg.Languages))
	for lang, langCfg := range cfg.Languages {
		m, err := newModule(lang, langCfg, sb)
		if err != nil {
			return nil, err
		}
		modules = append(modules, m)
	}

	registry, err := runtimex.NewRegistry(modules...)
	if err != nil {
		return nil, err
	}
	return &Engine{registry: registry, client: cli}, nil
}

// Prepare delegates to the language registry.
func (e *Engine) Prepare(ctx context.Context, script execution.Script) (runtimex.PreparedScript, *execution.Result, error) {
	return e.registry.Prepare(ctx, script)
}

// Warmup pulls every configured image so the first evaluation does not pay for it.
func (e *Engine) Warmup(ctx context.Context) error {
	return e.registry.Warmup(ctx)
}

// Close releases module resources and the Docker client.
func (e *Engine) Close() error {
	var errs []error
	if err := e.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("docker client: %w", err))
	}
	return errors.Join(errs...)
}

package docker

import (
	"context"
	"fmt"
	"sync"

	"dsacoach/internal/domain/execution"
	runtimex "dsacoach/internal/runtime"
)

const entrypointFilename = "main.py"

// pythonModule runs Python scripts. Once the image is known to be present it
// is never checked again; a failed pull is retried by the next caller.
type pythonModule struct {
	image   string
	workdir string
	sandbox *sandbox

	mu    sync.Mutex
	ready bool
}

var (
	_ runtimex.Module = (*pythonModule)(nil)
	_ runtimex.Warmer = (*pythonModule)(nil)
)

func newPythonModule(cfg LanguageConfig, sb *sandbox) (*pythonModule, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("docker runtime: python image not configured")
	}
	workdir := cfg.Workdir
	if workdir == "" {
		workdir = "/tmp"
	}
	return &pythonModule{image: cfg.Image, workdir: workdir, sandbox: sb}, nil
}

func newModule(lang execution.Language, cfg LanguageConfig, sb *sandbox) (runtimex.Module, error) {
	switch lang {
	case execution.LanguagePython:
		return newPythonModule(cfg, sb)
	default:
		return nil, fmt.Errorf("docker runtime: no sandbox support for language %q", lang)
	}
}

func (m *pythonModule) Language() execution.Language {
	return execution.LanguagePython
}

func (m *pythonModule) Warmup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return nil
	}
	if err := m.sandbox.ensureImage(ctx, m.image); err != nil {
		return err
	}
	m.ready = true
	return nil
}

// Prepare has nothing to build; syntax problems surface when the interpreter
// loads the script.
func (m *pythonModule) Prepare(ctx context.Context, script execution.Script) (runtimex.PreparedScript, *execution.Result, error) {
	if script.Language != execution.LanguagePython {
		return nil, nil, fmt.Errorf("docker runtime: script language %q does not match module %q", script.Language, execution.LanguagePython)
	}
	if err := m.Warmup(ctx); err != nil {
		return nil, nil, err
	}
	return &pythonRun{module: m, script: script}, nil, nil
}

func (m *pythonModule) Close() error {
	return nil
}

type pythonRun struct {
	module *pythonModule
	script execution.Script
}

func (p *pythonRun) Run(ctx context.Context) (*execution.Result, error) {
	files := make([]fileSpec, 0, len(p.script.Files)+1)
	files = append(files, fileSpec{Name: entrypointFilename, Mode: 0o644, Data: []byte(p.script.Source)})
	for _, f := range p.script.Files {
		files = append(files, fileSpec{Name: f.Name, Mode: f.Mode, Data: f.Data})
	}

	return p.module.sandbox.run(ctx, runRequest{
		image:     p.module.image,
		workdir:   p.module.workdir,
		limits:    p.script.Limits,
		command:   []string{"python", "-B", entrypointFilename},
		files:     files,
		artifacts: p.script.Artifacts,
	})
}

func (p *pythonRun) Close() error {
	return nil
}

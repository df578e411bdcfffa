package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"dsacoach/internal/domain/execution"
)

// Registry routes scripts to the module for their language. Python is
// assumed when a script names no language.
//
// The module set is fixed at construction, so a Registry is safe for
// concurrent use.
type Registry struct {
	modules map[execution.Language]Module
}

var _ Engine = (*Registry)(nil)

// NewRegistry constructs a registry from the supplied modules.
func NewRegistry(mods ...Module) (*Registry, error) {
	if len(mods) == 0 {
		return nil, errors.New("at least one runtime module must be registered")
	}

	modules := make(map[execution.Language]Module, len(mods))
	for _, m := range mods {
		if m == nil {
			return nil, errors.New("runtime module cannot be nil")
		}
		lang := m.Language()
		if lang == "" {
			return nil, errors.New("runtime module missing language identifier")
		}
		if _, dup := modules[lang]; dup {
			return nil, fmt.Errorf("duplicate runtime module for language %q", lang)
		}
		modules[lang] = m
	}

	return &Registry{modules: modules}, nil
}

// Prepare dispatches the script to its language module.
func (r *Registry) Prepare(ctx context.Context, script execution.Script) (PreparedScript, *execution.Result, error) {
	if script.Language == "" {
		script.Language = execution.LanguagePython
	}
	m, ok := r.modules[script.Language]
	if !ok {
		return nil, nil, fmt.Errorf("no runtime module registered for language %q", script.Language)
	}
	return m.Prepare(ctx, script)
}

// Warmup readies every module that supports it and reports all failures.
func (r *Registry) Warmup(ctx context.Context) error {
	var errs []error
	for _, lang := range r.Languages() {
		w, ok := r.modules[lang].(Warmer)
		if !ok {
			continue
		}
		if err := w.Warmup(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
		}
	}
	return errors.Join(errs...)
}

// Languages returns the registered languages in sorted order.
func (r *Registry) Languages() []execution.Language {
	langs := make([]execution.Language, 0, len(r.modules))
	for lang := range r.modules {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Close releases resources held by each module.
func (r *Registry) Close() error {
	var errs []error
	for _, lang := range r.Languages() {
		if err := r.modules[lang].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
		}
	}
	return errors.Join(errs...)
}

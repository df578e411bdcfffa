package runtime

import (
	"context"

	"dsacoach/internal/domain/execution"
	"dsacoach/internal/ports"
)

// PreparedScript is the runnable handle returned by modules.
type PreparedScript = ports.PreparedScript

// Engine executes scripts by delegating to language-specific modules.
type Engine = ports.Runner

// Module provides sandbox support for a specific language.
type Module interface {
	Language() execution.Language
	Prepare(ctx context.Context, script execution.Script) (PreparedScript, *execution.Result, error)
	Close() error
}

// Warmer is implemented by modules that can fetch what they need ahead of
// the first run, such as a container image.
type Warmer interface {
	Warmup(ctx context.Context) error
}

package ports

import (
	"context"

	"dsacoach/internal/domain/execution"
)

// PreparedScript represents a ready-to-run script instance.
type PreparedScript interface {
	Run(ctx context.Context) (*execution.Result, error)
	Close() error
}

// Runner prepares and executes scripts inside a sandbox.
//
// A non-nil *execution.Result returned from Prepare means the script could not
// be made runnable (for example a failed build) and carries the diagnostics.
type Runner interface {
	Prepare(ctx context.Context, script execution.Script) (PreparedScript, *execution.Result, error)
	Close() error
}

package ports

import "context"

// CompletionRequest is a single prompt sent to the language model.
type CompletionRequest struct {
	// Operation names the call for logs and metrics, e.g. "generate_question".
	Operation   string
	System      string
	Prompt      string
	Temperature float32
}

// Completer sends prompts to an external language model.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

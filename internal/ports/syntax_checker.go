package ports

import "context"

// SyntaxIssue locates a parse problem in a source text.
type SyntaxIssue struct {
	Line    int
	Column  int
	Snippet string
	Missing bool
}

// SyntaxChecker parses source text without executing it.
type SyntaxChecker interface {
	Check(ctx context.Context, source string) ([]SyntaxIssue, error)
}

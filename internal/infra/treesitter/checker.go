// Package treesitter pre-validates Python source with a tree-sitter parse.
package treesitter

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"dsacoach/internal/ports"
)

const (
	maxIssues  = 50
	maxDepth   = 1000
	maxSnippet = 50
)

// Checker reports ERROR and MISSING nodes of a Python parse tree.
// A Checker is safe for concurrent use; every call gets its own parser.
type Checker struct{}

var _ ports.SyntaxChecker = (*Checker)(nil)

// NewChecker returns a Python syntax checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check parses source and returns the problems found, in document order.
// A nil slice means the source parsed cleanly.
func (c *Checker) Check(ctx context.Context, source string) ([]ports.SyntaxIssue, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	content := []byte(source)
	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse python: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	var issues []ports.SyntaxIssue
	collectIssues(root, content, &issues, 0)
	if len(issues) == 0 {
		// HasError without a located node; report the root.
		issues = append(issues, ports.SyntaxIssue{Line: 1, Snippet: truncate(source, maxSnippet)})
	}
	return issues, nil
}

func collectIssues(node *sitter.Node, content []byte, issues *[]ports.SyntaxIssue, depth int) {
	if depth > maxDepth || len(*issues) >= maxIssues {
		return
	}

	if node.IsError() || node.IsMissing() {
		point := node.StartPoint()
		issue := ports.SyntaxIssue{
			Line:    int(point.Row) + 1,
			Column:  int(point.Column),
			Missing: node.IsMissing(),
		}
		if issue.Missing {
			issue.Snippet = node.Type()
		} else {
			start, end := node.StartByte(), node.EndByte()
			if end > uint32(len(content)) {
				end = uint32(len(content))
			}
			if end > start {
				issue.Snippet = truncate(string(content[start:end]), maxSnippet)
			}
		}
		*issues = append(*issues, issue)
		// Children of an ERROR node are the tokens it swallowed.
		return
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		collectIssues(node.Child(i), content, issues, depth+1)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package evaluation

import (
	"github.com/google/uuid"

	"dsacoach/internal/domain/execution"
)

// Submission pairs a candidate solution with the test code that checks it.
type Submission struct {
	ID       string
	Solution string
	Tests    string
	Limits   execution.RunLimits
}

// NewSubmission creates a submission with a fresh identifier.
func NewSubmission(solution, tests string) Submission {
	return Submission{
		ID:       uuid.NewString(),
		Solution: solution,
		Tests:    tests,
	}
}

// Report carries the verdict for a Submission through the worker pipeline.
type Report struct {
	Submission Submission
	Result     Result
}

package ports

import (
	"context"

	"dsacoach/internal/domain/evaluation"
)

// Evaluator runs a submission against its tests and classifies the outcome.
// Implementations never fail: every fault is folded into the Result.
type Evaluator interface {
	EvaluateSubmission(ctx context.Context, submission evaluation.Submission) evaluation.Result
}

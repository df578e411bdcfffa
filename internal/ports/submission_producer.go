package ports

import (
	"context"

	"dsacoach/internal/domain/evaluation"
)

// SubmissionProducer yields submissions to evaluate.
//
// NextSubmission returns io.EOF once the producer is exhausted.
type SubmissionProducer interface {
	NextSubmission(ctx context.Context) (evaluation.Submission, error)
}

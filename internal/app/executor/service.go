package executor

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/semaphore"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/ports"
)

// Service feeds submissions from a producer through an evaluator.
type Service struct {
	evaluator ports.Evaluator
}

// NewService constructs a Service with the provided evaluator dependency.
func NewService(evaluator ports.Evaluator) *Service {
	return &Service{evaluator: evaluator}
}

// Execute evaluates a single submission.
func (s *Service) Execute(ctx context.Context, submission evaluation.Submission) evaluation.Report {
	return evaluation.Report{
		Submission: submission,
		Result:     s.evaluator.EvaluateSubmission(ctx, submission),
	}
}

// ExecuteFromProducer evaluates submissions with at most maxParallel in
// flight. A slot is reserved before the next submission is requested, so a
// saturated worker leaves pending messages with the producer.
//
// If maxSubmissions is greater than zero the execution stops after that many
// submissions. Otherwise it runs until the context is cancelled or the
// producer returns io.EOF. Either way it waits for in-flight evaluations.
//
// Cancelling ctx stops intake only. Evaluations already started run to
// completion on a detached context; the sandbox time limit bounds them, and
// a verdict cut short by shutdown would be indistinguishable from a real
// runtime fault.
//
// onReport, when set, is called once per submission and may be called from
// several goroutines at once.
func (s *Service) ExecuteFromProducer(
	ctx context.Context,
	producer ports.SubmissionProducer,
	maxSubmissions int,
	maxParallel int,
	onReport func(evaluation.Report),
) error {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	slots := semaphore.NewWeighted(int64(maxParallel))
	evalCtx := context.WithoutCancel(ctx)

	drain := func(err error) error {
		_ = slots.Acquire(context.Background(), int64(maxParallel))
		return err
	}

	for processed := 0; maxSubmissions <= 0 || processed < maxSubmissions; processed++ {
		if err := slots.Acquire(ctx, 1); err != nil {
			return drain(nil)
		}

		submission, err := producer.NextSubmission(ctx)
		if err != nil {
			slots.Release(1)
			if isEndOfStream(err) {
				return drain(nil)
			}
			return drain(fmt.Errorf("get next submission: %w", err))
		}

		go func() {
			defer slots.Release(1)
			report := s.Execute(evalCtx, submission)
			if onReport != nil {
				onReport(report)
			}
		}()
	}
	return drain(nil)
}

func isEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Package harness evaluates untrusted solutions against generated tests
// inside the sandbox runtime.
package harness

import (
	"context"
	_ "embed"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/domain/execution"
	"dsacoach/internal/logging"
	"dsacoach/internal/observability"
	"dsacoach/internal/ports"
)

const (
	candidateFilename = "candidate.py"
	reportFilename    = "report.json"
)

//go:embed driver.py
var driverSource string

// Service runs each submission in a fresh sandbox and classifies the result.
// It is safe for concurrent use when its Runner is.
type Service struct {
	runner  ports.Runner
	checker ports.SyntaxChecker
	limits  execution.RunLimits
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

var _ ports.Evaluator = (*Service)(nil)

// Option customises a Service.
type Option func(*Service)

// WithLimits sets the limits applied when a submission carries none.
func WithLimits(limits execution.RunLimits) Option {
	return func(s *Service) { s.limits = limits }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics records evaluation counters and durations.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// New constructs a Service. checker may be nil, in which case malformed
// solutions are reported by the interpreter instead.
func New(runner ports.Runner, checker ports.SyntaxChecker, opts ...Option) *Service {
	s := &Service{
		runner:  runner,
		checker: checker,
		logger:  logging.NewNop(),
		tracer:  observability.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate runs solution and tests together and returns the verdict.
func (s *Service) Evaluate(ctx context.Context, solution, tests string) evaluation.Result {
	return s.EvaluateSubmission(ctx, evaluation.NewSubmission(solution, tests))
}

// EvaluateSubmission never fails: sandbox and infrastructure faults come back
// as execution errors.
func (s *Service) EvaluateSubmission(ctx context.Context, submission evaluation.Submission) evaluation.Result {
	ctx, span := s.tracer.Start(ctx, "harness.Evaluate",
		trace.WithAttributes(attribute.String("submission.id", submission.ID)),
	)
	defer span.End()

	start := time.Now()
	result := s.evaluate(ctx, submission)
	result.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("evaluation.outcome", string(result.Outcome)),
		attribute.String("evaluation.error_kind", string(result.ErrorKind)),
	)
	if result.ErrorKind == evaluation.KindRuntimeFault && isSandboxFault(result) {
		span.SetStatus(codes.Error, result.Message)
	}

	s.metrics.RecordEvaluation(string(result.Outcome), string(result.ErrorKind), result.Duration)
	s.logger.Info("evaluation finished",
		"submission_id", submission.ID,
		"outcome", result.Outcome,
		"error_kind", result.ErrorKind,
		"error_type", result.ErrorType,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result
}

func (s *Service) evaluate(ctx context.Context, submission evaluation.Submission) evaluation.Result {
	if s.checker != nil {
		issues, err := s.checker.Check(ctx, submission.Solution)
		switch {
		case err != nil:
			s.logger.Warn("syntax pre-check failed, deferring to interpreter",
				"submission_id", submission.ID, "error", err)
		case len(issues) > 0:
			return syntaxResult(issues)
		}
	}

	script := execution.Script{
		ID:       submission.ID,
		Language: execution.LanguagePython,
		Source:   driverSource,
		Files: []execution.File{{
			Name: candidateFilename,
			Mode: 0o644,
			Data: []byte(combine(submission.Solution, submission.Tests)),
		}},
		Artifacts: []string{reportFilename},
		Limits:    submission.Limits.Merge(s.limits),
	}

	prepared, buildResult, err := s.runner.Prepare(ctx, script)
	if err != nil {
		return sandboxFault(err)
	}
	if buildResult != nil {
		return missingReport(buildResult)
	}
	defer func() {
		if err := prepared.Close(); err != nil {
			s.logger.Warn("close prepared script", "submission_id", submission.ID, "error", err)
		}
	}()

	runResult, err := prepared.Run(ctx)
	if err != nil {
		return sandboxFault(err)
	}

	return classify(runResult)
}

// combine joins the two sources into one unit, solution first so the tests
// can reference its definitions.
func combine(solution, tests string) string {
	return solution + "\n\n" + tests
}

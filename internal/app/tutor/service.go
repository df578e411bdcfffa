// Package tutor drives the practice loop: it asks the language model for
// questions, reviews and tests, and runs the tests through the harness.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/domain/question"
	"dsacoach/internal/logging"
	"dsacoach/internal/ports"
)

var (
	// ErrInvalidRequest marks caller mistakes such as an unknown topic.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProviderResponse marks replies that could not be decoded or validated.
	ErrProviderResponse = errors.New("unusable provider response")
)

const (
	temperatureQuestion   = 0.7
	temperatureReview     = 0.7
	temperatureTests      = 0.6
	temperatureComplexity = 0.6
)

// Outcome is everything a learner gets back for one submission.
type Outcome struct {
	Review     question.Review   `json:"review"`
	Evaluation evaluation.Result `json:"evaluation"`
	Tests      string            `json:"tests"`
}

// Service implements the question, review and submission flows.
type Service struct {
	completer ports.Completer
	evaluator ports.Evaluator
	logger    logging.Logger
}

// NewService builds a Service. logger may be nil.
func NewService(completer ports.Completer, evaluator ports.Evaluator, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		completer: completer,
		evaluator: evaluator,
		logger:    logger,
	}
}

// GenerateQuestion asks the provider for a new question on topic at difficulty.
func (s *Service) GenerateQuestion(ctx context.Context, topic string, difficulty question.Difficulty) (question.Question, error) {
	if !question.ValidTopic(topic) {
		return question.Question{}, fmt.Errorf("%w: unknown topic %q", ErrInvalidRequest, topic)
	}
	if !question.ValidDifficulty(difficulty) {
		return question.Question{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, difficulty)
	}

	reply, err := s.completer.Complete(ctx, ports.CompletionRequest{
		Operation:   "generate_question",
		System:      systemQuestion,
		Prompt:      questionPrompt(topic, difficulty),
		Temperature: temperatureQuestion,
	})
	if err != nil {
		return question.Question{}, fmt.Errorf("generate question: %w", err)
	}

	var q question.Question
	if err := decodeJSON(reply, &q); err != nil {
		return question.Question{}, fmt.Errorf("generate question: %w", err)
	}
	q.ID = uuid.NewString()
	q.Topic = topic
	q.Difficulty = difficulty
	if err := q.Validate(); err != nil {
		return question.Question{}, fmt.Errorf("generate question: %w: %v", ErrProviderResponse, err)
	}

	s.logger.Info("question generated", "question_id", q.ID, "topic", topic, "difficulty", difficulty, "title", q.Title)
	return q, nil
}

// ReviewSolution asks the provider to judge code against q.
func (s *Service) ReviewSolution(ctx context.Context, q question.Question, code string) (question.Review, error) {
	reply, err := s.completer.Complete(ctx, ports.CompletionRequest{
		Operation:   "review_solution",
		System:      systemReview,
		Prompt:      reviewPrompt(q, code),
		Temperature: temperatureReview,
	})
	if err != nil {
		return question.Review{}, fmt.Errorf("review solution: %w", err)
	}

	var review question.Review
	if err := decodeJSON(reply, &review); err != nil {
		return question.Review{}, fmt.Errorf("review solution: %w", err)
	}
	return review, nil
}

// GenerateTests asks the provider for assert-based test code for code.
func (s *Service) GenerateTests(ctx context.Context, q question.Question, code string) (string, error) {
	reply, err := s.completer.Complete(ctx, ports.CompletionRequest{
		Operation:   "generate_tests",
		System:      systemTests,
		Prompt:      testsPrompt(q, code),
		Temperature: temperatureTests,
	})
	if err != nil {
		return "", fmt.Errorf("generate tests: %w", err)
	}

	tests := extractPython(reply)
	if tests == "" {
		return "", fmt.Errorf("generate tests: %w: empty test code", ErrProviderResponse)
	}
	return tests, nil
}

// AnalyzeComplexity never fails; provider or decoding problems yield
// question.UnknownComplexity.
func (s *Service) AnalyzeComplexity(ctx context.Context, code string) question.Complexity {
	reply, err := s.completer.Complete(ctx, ports.CompletionRequest{
		Operation:   "analyze_complexity",
		System:      systemComplexity,
		Prompt:      complexityPrompt(code),
		Temperature: temperatureComplexity,
	})
	if err != nil {
		s.logger.Warn("complexity analysis failed", "error", err)
		return question.UnknownComplexity()
	}

	var c question.Complexity
	if err := decodeJSON(reply, &c); err != nil {
		s.logger.Warn("complexity analysis unreadable", "error", err)
		return question.UnknownComplexity()
	}
	if c.OptimizationSuggestions == nil {
		c.OptimizationSuggestions = []string{}
	}
	return c
}

// Submit reviews the solution and generates its tests concurrently, then runs
// the tests through the harness.
func (s *Service) Submit(ctx context.Context, q question.Question, solution string) (Outcome, error) {
	if err := q.Validate(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if strings.TrimSpace(solution) == "" {
		return Outcome{}, fmt.Errorf("%w: code cannot be empty", ErrInvalidRequest)
	}

	var (
		review question.Review
		tests  string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		review, err = s.ReviewSolution(gctx, q, solution)
		return err
	})
	g.Go(func() error {
		var err error
		tests, err = s.GenerateTests(gctx, q, solution)
		return err
	})
	if err := g.Wait(); err != nil {
		return Outcome{}, err
	}

	result := s.evaluator.EvaluateSubmission(ctx, evaluation.NewSubmission(solution, tests))

	s.logger.Info("user interaction",
		"question_id", q.ID,
		"topic", q.Topic,
		"difficulty", q.Difficulty,
		"solution_length", len(solution),
		"is_correct", review.IsCorrect,
		"outcome", result.Outcome,
		"error_kind", result.ErrorKind,
	)

	return Outcome{Review: review, Evaluation: result, Tests: tests}, nil
}

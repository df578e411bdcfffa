package producer

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/ports"
)

// Service implements ports.SubmissionProducer over an in-memory queue.
type Service struct {
	mu          sync.Mutex
	submissions []evaluation.Submission
	index       int
}

var _ ports.SubmissionProducer = (*Service)(nil)

// NewService builds a producer that yields the given submissions in order.
func NewService(submissions ...evaluation.Submission) *Service {
	s := &Service{}
	for _, submission := range submissions {
		s.AddSubmission(submission)
	}
	return s
}

// Examples returns the canonical solution/test pairs used to smoke-test a
// deployment: a pass, a failed assertion, a syntax error and an undefined name.
func Examples() []evaluation.Submission {
	const addTest = "assert add(2,3)==5"
	return []evaluation.Submission{
		{ID: "example-pass", Solution: "def add(a,b): return a+b", Tests: addTest},
		{ID: "example-assertion", Solution: "def add(a,b): return a-b", Tests: addTest},
		{ID: "example-syntax", Solution: "def add(a,b) return a+b", Tests: addTest},
		{ID: "example-empty", Solution: "", Tests: addTest},
	}
}

// NextSubmission returns the next queued submission or io.EOF once drained.
func (s *Service) NextSubmission(ctx context.Context) (evaluation.Submission, error) {
	select {
	case <-ctx.Done():
		return evaluation.Submission{}, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.index >= len(s.submissions) {
		return evaluation.Submission{}, io.EOF
	}

	submission := s.submissions[s.index]
	s.index++

	return submission, nil
}

// AddSubmission appends to the queue, assigning an ID when missing.
func (s *Service) AddSubmission(submission evaluation.Submission) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions = append(s.submissions, submission)
}

// Pending reports how many submissions have not been handed out yet.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions) - s.index
}

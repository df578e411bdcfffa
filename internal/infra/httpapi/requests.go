package httpapi

import (
	"dsacoach/internal/domain/question"
)

const maxSourceBytes = 64 << 10

// GenerateQuestionRequest asks for a new question.
type GenerateQuestionRequest struct {
	Topic      string              `json:"topic" validate:"required"`
	Difficulty question.Difficulty `json:"difficulty" validate:"required,oneof=Easy Medium Hard"`
}

// SubmitSolutionRequest carries the question back with the learner's code;
// the server keeps no session.
type SubmitSolutionRequest struct {
	Question question.Question `json:"question"`
	Solution string            `json:"solution" validate:"required,max=65536"`
}

// EvaluateRequest runs the harness directly. An empty solution is allowed.
type EvaluateRequest struct {
	Solution    string `json:"solution" validate:"max=65536"`
	Tests       string `json:"tests" validate:"required,max=65536"`
	TimeLimitMs int64  `json:"time_limit_ms" validate:"omitempty,min=100,max=60000"`
}

// ComplexityRequest asks for a complexity analysis of code.
type ComplexityRequest struct {
	Code string `json:"code" validate:"required,max=65536"`
}

// CatalogResponse lists the supported topics and difficulties.
type CatalogResponse struct {
	Topics       []string              `json:"topics"`
	Difficulties []question.Difficulty `json:"difficulties"`
}

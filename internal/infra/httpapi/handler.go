// Package httpapi exposes the tutor and the harness over JSON HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"dsacoach/internal/app/tutor"
	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/domain/question"
	"dsacoach/internal/logging"
	"dsacoach/internal/ports"
)

// Tutor is the subset of the tutor service the handlers need.
type Tutor interface {
	GenerateQuestion(ctx context.Context, topic string, difficulty question.Difficulty) (question.Question, error)
	Submit(ctx context.Context, q question.Question, solution string) (tutor.Outcome, error)
	AnalyzeComplexity(ctx context.Context, code string) question.Complexity
}

// Handler serves the /api routes.
type Handler struct {
	tutor     Tutor
	evaluator ports.Evaluator
	logger    logging.Logger
	validate  *validator.Validate
}

// NewHandler creates a new handler
func NewHandler(t Tutor, evaluator ports.Evaluator, logger logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		tutor:     t,
		evaluator: evaluator,
		logger:    logger,
		validate:  validator.New(),
	}
}

// RegisterRoutes registers the API routes for Handler
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/catalog", h.GetCatalog).Methods(http.MethodGet)
	router.HandleFunc("/api/questions", h.GenerateQuestion).Methods(http.MethodPost)
	router.HandleFunc("/api/submissions", h.SubmitSolution).Methods(http.MethodPost)
	router.HandleFunc("/api/evaluations", h.Evaluate).Methods(http.MethodPost)
	router.HandleFunc("/api/complexity", h.AnalyzeComplexity).Methods(http.MethodPost)
}

// GetCatalog returns the fixed topic and difficulty lists.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, CatalogResponse{Topics: question.Topics, Difficulties: question.Difficulties})
}

// GenerateQuestion handles question generation requests
func (h *Handler) GenerateQuestion(w http.ResponseWriter, r *http.Request) {
	var req GenerateQuestionRequest
	if !h.decode(w, r, &req) {
		return
	}

	q, err := h.tutor.GenerateQuestion(r.Context(), req.Topic, req.Difficulty)
	if err != nil {
		h.writeServiceError(w, "generate question", err)
		return
	}

	WriteSuccess(w, q)
}

// SubmitSolution reviews, tests and evaluates a learner's solution.
func (h *Handler) SubmitSolution(w http.ResponseWriter, r *http.Request) {
	var req SubmitSolutionRequest
	if !h.decode(w, r, &req) {
		return
	}

	out, err := h.tutor.Submit(r.Context(), req.Question, req.Solution)
	if err != nil {
		h.writeServiceError(w, "submit solution", err)
		return
	}

	WriteSuccess(w, out)
}

// Evaluate runs the harness on a solution and caller-supplied tests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}

	submission := evaluation.NewSubmission(req.Solution, req.Tests)
	submission.Limits.TimeLimit = time.Duration(req.TimeLimitMs) * time.Millisecond

	WriteSuccess(w, h.evaluator.EvaluateSubmission(r.Context(), submission))
}

// AnalyzeComplexity returns the provider's complexity estimate; it falls back
// to "N/A" rather than failing.
func (h *Handler) AnalyzeComplexity(w http.ResponseWriter, r *http.Request) {
	var req ComplexityRequest
	if !h.decode(w, r, &req) {
		return
	}

	WriteSuccess(w, h.tutor.AnalyzeComplexity(r.Context(), req.Code))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, 4*maxSourceBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.logger.Error("Failed to decode request", "path", r.URL.Path, "error", err)
		msg := "Invalid request"
		if errors.Is(err, io.EOF) {
			msg = "Request body is empty"
		}
		WriteError(w, ErrorMessage{Message: msg, StatusCode: http.StatusBadRequest})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		WriteError(w, ErrorMessage{Message: validationMessage(err), StatusCode: http.StatusBadRequest})
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, tutor.ErrInvalidRequest) {
		WriteError(w, ErrorMessage{Message: err.Error(), StatusCode: http.StatusBadRequest})
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}

	h.logger.Error("Failed to "+op, "error", err)
	WriteError(w, ErrorMessage{
		Message:    fmt.Sprintf("Failed to %s: the question provider is unavailable", op),
		StatusCode: http.StatusBadGateway,
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return "Invalid request: " + strings.Join(parts, ", ")
}

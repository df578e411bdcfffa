package evaluation

import "time"

// Outcome is the top-level classification of an evaluation.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeAssertionFailure Outcome = "assertion_failure"
	OutcomeExecutionError   Outcome = "execution_error"
)

// ErrorKind refines OutcomeExecutionError. It is empty for the other outcomes.
type ErrorKind string

const (
	KindSyntaxError  ErrorKind = "syntax_error"
	KindRuntimeFault ErrorKind = "runtime_fault"
	KindTimeout      ErrorKind = "timeout"
	KindMemoryLimit  ErrorKind = "memory_limit"
)

// Result is the structured verdict for one submission.
//
// A Result always tells a wrong answer (assertion failure) apart from code
// that is malformed or raised unexpectedly (execution error).
type Result struct {
	Outcome   Outcome       `json:"outcome"`
	Message   string        `json:"message"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	ErrorType string        `json:"error_type,omitempty"`
	Trace     string        `json:"trace,omitempty"`
	Line      int           `json:"line,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Passed reports whether every assertion held.
func (r Result) Passed() bool {
	return r.Outcome == OutcomeSuccess
}

// Success builds a passing result.
func Success(message string) Result {
	return Result{Outcome: OutcomeSuccess, Message: message}
}

// AssertionFailure builds a result for a failed assertion.
func AssertionFailure(message string) Result {
	return Result{
		Outcome:   OutcomeAssertionFailure,
		Message:   message,
		ErrorType: "AssertionError",
	}
}

// ExecutionError builds a result for any fault other than a failed assertion.
func ExecutionError(kind ErrorKind, message string) Result {
	return Result{
		Outcome:   OutcomeExecutionError,
		Message:   message,
		ErrorKind: kind,
	}
}

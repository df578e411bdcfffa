package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/domain/execution"
)

const (
	messageTypeSubmission = "submission"
	messageTypeDone       = "done"
)

// errInvalidMessage marks payloads that can never become a submission.
var errInvalidMessage = errors.New("invalid submission message")

type submissionEnvelope struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	Solution string            `json:"solution"`
	Tests    string            `json:"tests"`
	Limits   *submissionLimits `json:"limits,omitempty"`
}

type submissionLimits struct {
	TimeLimitMs      int64 `json:"time_limit_ms"`
	MemoryLimitBytes int64 `json:"memory_limit_bytes"`
}

type reportEnvelope struct {
	ID         string               `json:"id"`
	Outcome    evaluation.Outcome   `json:"outcome"`
	Message    string               `json:"message,omitempty"`
	ErrorKind  evaluation.ErrorKind `json:"error_kind,omitempty"`
	ErrorType  string               `json:"error_type,omitempty"`
	Trace      string               `json:"trace,omitempty"`
	Line       int                  `json:"line,omitempty"`
	DurationMs int64                `json:"duration_ms"`
	Timestamp  time.Time            `json:"timestamp"`
}

func decodeSubmissionMessage(msg kafkago.Message) (evaluation.Submission, error) {
	var envelope submissionEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return evaluation.Submission{}, fmt.Errorf("%w: decode message: %v", errInvalidMessage, err)
	}

	msgType := envelope.Type
	if msgType == "" {
		msgType = messageTypeSubmission
	}

	switch msgType {
	case messageTypeSubmission:
		return envelope.toSubmission(msg)
	case messageTypeDone:
		return evaluation.Submission{}, io.EOF
	default:
		return evaluation.Submission{}, fmt.Errorf("%w: unknown message type %q", errInvalidMessage, msgType)
	}
}

// toSubmission accepts an empty solution; the tests then fail on the
// undefined names, which is a verdict rather than a malformed message.
func (e submissionEnvelope) toSubmission(msg kafkago.Message) (evaluation.Submission, error) {
	if e.Tests == "" {
		return evaluation.Submission{}, fmt.Errorf("%w: missing tests", errInvalidMessage)
	}

	id := e.ID
	if id == "" {
		id = string(msg.Key)
	}
	if id == "" {
		id = fmt.Sprintf("%s:%d", msg.Topic, msg.Offset)
	}

	return evaluation.Submission{
		ID:       id,
		Solution: e.Solution,
		Tests:    e.Tests,
		Limits:   e.toLimits(),
	}, nil
}

func (e submissionEnvelope) toLimits() execution.RunLimits {
	if e.Limits == nil {
		return execution.RunLimits{}
	}

	var limits execution.RunLimits
	if e.Limits.TimeLimitMs > 0 {
		limits.TimeLimit = time.Duration(e.Limits.TimeLimitMs) * time.Millisecond
	}
	if e.Limits.MemoryLimitBytes > 0 {
		limits.MemoryLimitBytes = e.Limits.MemoryLimitBytes
	}
	return limits
}

func encodeReport(report evaluation.Report) ([]byte, error) {
	payload, err := json.Marshal(makeReportEnvelope(report))
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return payload, nil
}

func makeReportEnvelope(report evaluation.Report) reportEnvelope {
	res := report.Result
	return reportEnvelope{
		ID:         report.Submission.ID,
		Outcome:    res.Outcome,
		Message:    res.Message,
		ErrorKind:  res.ErrorKind,
		ErrorType:  res.ErrorType,
		Trace:      res.Trace,
		Line:       res.Line,
		DurationMs: res.Duration.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	}
}

// EncodeSubmission builds the wire form of a submission, for producers and tests.
func EncodeSubmission(submission evaluation.Submission) ([]byte, error) {
	envelope := submissionEnvelope{
		Type:     messageTypeSubmission,
		ID:       submission.ID,
		Solution: submission.Solution,
		Tests:    submission.Tests,
	}
	if limits := submission.Limits; limits.TimeLimit > 0 || limits.MemoryLimitBytes > 0 {
		envelope.Limits = &submissionLimits{
			TimeLimitMs:      limits.TimeLimit.Milliseconds(),
			MemoryLimitBytes: limits.MemoryLimitBytes,
		}
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal submission: %w", err)
	}
	return payload, nil
}

// DoneMessage is the sentinel payload that ends a worker's consumption.
func DoneMessage() []byte {
	return []byte(`{"type":"done"}`)
}

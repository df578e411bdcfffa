package harness

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/domain/execution"
	"dsacoach/internal/ports"
)

const (
	successMessage = "All tests passed successfully!"
	sandboxPrefix  = "sandbox: "
	maxTraceBytes  = 16 << 10
)

// report is the document the in-sandbox driver writes.
type report struct {
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	ErrorType string `json:"error_type"`
	Trace     string `json:"trace"`
	Line      int    `json:"line"`
}

func classify(run *execution.Result) evaluation.Result {
	switch run.Status {
	case execution.StatusTimeLimit:
		res := evaluation.ExecutionError(evaluation.KindTimeout,
			fmt.Sprintf("execution exceeded the time limit after %s", run.Duration.Round(time.Millisecond)))
		res.Trace = truncateTrace(run.Stderr)
		return res
	case execution.StatusMemoryLimit:
		res := evaluation.ExecutionError(evaluation.KindMemoryLimit, "execution exceeded the memory limit")
		res.ErrorType = "MemoryError"
		res.Trace = truncateTrace(run.Stderr)
		return res
	}

	data, ok := run.Artifact(reportFilename)
	if !ok {
		return missingReport(run)
	}

	var rep report
	if err := json.Unmarshal(data, &rep); err != nil {
		res := missingReport(run)
		res.Message = fmt.Sprintf("unreadable evaluation report: %v", err)
		return res
	}

	switch rep.Outcome {
	case "success":
		return evaluation.Success(successMessage)
	case "assertion_failure":
		res := evaluation.AssertionFailure(assertionMessage(rep.Message))
		res.Trace = truncateTrace(rep.Trace)
		res.Line = rep.Line
		return res
	case "syntax_error":
		return fromReport(evaluation.KindSyntaxError, rep)
	case "runtime_fault":
		return fromReport(evaluation.KindRuntimeFault, rep)
	default:
		res := missingReport(run)
		res.Message = fmt.Sprintf("unknown evaluation outcome %q", rep.Outcome)
		return res
	}
}

func fromReport(kind evaluation.ErrorKind, rep report) evaluation.Result {
	message := rep.Message
	if rep.ErrorType != "" {
		if message == "" {
			message = rep.ErrorType
		} else {
			message = rep.ErrorType + ": " + message
		}
	}
	res := evaluation.ExecutionError(kind, message)
	res.ErrorType = rep.ErrorType
	res.Trace = truncateTrace(rep.Trace)
	res.Line = rep.Line
	return res
}

func assertionMessage(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return "Assertion failed"
	}
	return "Assertion failed: " + description
}

// missingReport covers runs that ended without the driver writing a verdict,
// e.g. os._exit or a killed interpreter.
func missingReport(run *execution.Result) evaluation.Result {
	message := "execution ended without a result"
	if run.ExitCode != 0 {
		message = fmt.Sprintf("execution ended with exit code %d without a result", run.ExitCode)
	}
	res := evaluation.ExecutionError(evaluation.KindRuntimeFault, message)
	res.Trace = truncateTrace(run.Stderr)
	return res
}

func syntaxResult(issues []ports.SyntaxIssue) evaluation.Result {
	first := issues[0]
	var message string
	if first.Missing {
		message = fmt.Sprintf("invalid syntax at line %d, column %d: missing %s", first.Line, first.Column+1, first.Snippet)
	} else {
		message = fmt.Sprintf("invalid syntax at line %d, column %d", first.Line, first.Column+1)
		if first.Snippet != "" {
			message += ": " + first.Snippet
		}
	}

	var trace strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&trace, "line %d, col %d", issue.Line, issue.Column+1)
		if issue.Snippet != "" {
			fmt.Fprintf(&trace, ": %s", issue.Snippet)
		}
		trace.WriteByte('\n')
	}

	res := evaluation.ExecutionError(evaluation.KindSyntaxError, message)
	res.ErrorType = "SyntaxError"
	res.Line = first.Line
	res.Trace = trace.String()
	return res
}

func sandboxFault(err error) evaluation.Result {
	return evaluation.ExecutionError(evaluation.KindRuntimeFault, sandboxPrefix+err.Error())
}

func isSandboxFault(res evaluation.Result) bool {
	return strings.HasPrefix(res.Message, sandboxPrefix)
}

func truncateTrace(s string) string {
	if len(s) <= maxTraceBytes {
		return s
	}
	return s[:maxTraceBytes] + "\n... (truncated)"
}

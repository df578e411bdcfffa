package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"dsacoach/internal/app/executor"
	"dsacoach/internal/app/producer"
	"dsacoach/internal/domain/evaluation"
)

var errEvaluationFailed = errors.New("one or more evaluations did not pass")

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a solution file against a test file in the sandbox",
	Example: `  dsacoach eval --solution add.py --tests test_add.py
  dsacoach eval --examples`,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().String("solution", "", "path to the solution source (\"-\" reads stdin)")
	evalCmd.Flags().String("tests", "", "path to the test source")
	evalCmd.Flags().Duration("time-limit", 0, "per-evaluation time limit (default RUNNER_TIME_LIMIT)")
	evalCmd.Flags().Bool("examples", false, "run the built-in example submissions")
	evalCmd.Flags().Bool("json", false, "print reports as JSON lines")
}

func runEval(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	examples, _ := flags.GetBool("examples")
	asJSON, _ := flags.GetBool("json")
	timeLimit, _ := flags.GetDuration("time-limit")

	var queue *producer.Service
	if examples {
		queue = producer.NewService(producer.Examples()...)
	} else {
		queue = producer.NewService()
		sub, err := submissionFromFlags(cmd)
		if err != nil {
			return err
		}
		sub.Limits.TimeLimit = timeLimit
		queue.AddSubmission(sub)
	}

	sb, err := newSandbox(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sb.Close(); cerr != nil {
			logger.Warn("Failed to close sandbox", "error", cerr)
		}
	}()

	var (
		mu     sync.Mutex
		failed bool
	)
	out := cmd.OutOrStdout()
	service := executor.NewService(sb.harness)
	err = service.ExecuteFromProducer(ctx, queue, 0, cfg.MaxParallel, func(report evaluation.Report) {
		mu.Lock()
		defer mu.Unlock()
		if !report.Result.Passed() {
			failed = true
		}
		if asJSON {
			_ = json.NewEncoder(out).Encode(reportView(report))
			return
		}
		printReport(out, report)
	})
	if err != nil {
		return err
	}
	if failed {
		return errEvaluationFailed
	}
	return nil
}

func submissionFromFlags(cmd *cobra.Command) (evaluation.Submission, error) {
	solutionPath, _ := cmd.Flags().GetString("solution")
	testsPath, _ := cmd.Flags().GetString("tests")
	if testsPath == "" {
		return evaluation.Submission{}, errors.New("--tests is required unless --examples is set")
	}

	solution := ""
	if solutionPath != "" {
		data, err := readSource(cmd.InOrStdin(), solutionPath)
		if err != nil {
			return evaluation.Submission{}, err
		}
		solution = data
	}

	tests, err := readSource(cmd.InOrStdin(), testsPath)
	if err != nil {
		return evaluation.Submission{}, err
	}

	return evaluation.NewSubmission(solution, tests), nil
}

func readSource(stdin io.Reader, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

type evalReport struct {
	ID         string `json:"id"`
	Outcome    string `json:"outcome"`
	Message    string `json:"message"`
	ErrorKind  string `json:"error_kind,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
	Line       int    `json:"line,omitempty"`
	Trace      string `json:"trace,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

func reportView(report evaluation.Report) evalReport {
	r := report.Result
	return evalReport{
		ID:         report.Submission.ID,
		Outcome:    string(r.Outcome),
		Message:    r.Message,
		ErrorKind:  string(r.ErrorKind),
		ErrorType:  r.ErrorType,
		Line:       r.Line,
		Trace:      r.Trace,
		DurationMs: r.Duration.Milliseconds(),
	}
}

func printReport(w io.Writer, report evaluation.Report) {
	r := report.Result
	fmt.Fprintf(w, "submission %q: %s after %s\n", report.Submission.ID, r.Outcome, r.Duration.Round(time.Millisecond))
	if r.ErrorKind != "" {
		fmt.Fprintf(w, "  kind: %s", r.ErrorKind)
		if r.Line > 0 {
			fmt.Fprintf(w, " (line %d)", r.Line)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  %s\n", r.Message)
	if r.Trace != "" {
		fmt.Fprintln(w, r.Trace)
	}
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/domain/execution"
	"dsacoach/internal/logging"
)

func TestNewConsumerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewConsumer(Config{}); err == nil {
		t.Fatalf("expected error when brokers missing")
	}
	if _, err := NewConsumer(Config{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error when topic missing")
	}
}

func TestNewConsumerAppliesDefaults(t *testing.T) {
	t.Parallel()

	consumer, err := NewConsumer(Config{
		Brokers: []string{"localhost:9092"},
		Topic:   "submissions",
	})
	if err != nil {
		t.Fatalf("NewConsumer returned error: %v", err)
	}
	if err := consumer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestConsumerNextSubmissionParsesEnvelope(t *testing.T) {
	t.Parallel()

	envelope := submissionEnvelope{
		Solution: "def add(a,b): return a+b",
		Tests:    "assert add(2,3)==5",
		Limits: &submissionLimits{
			TimeLimitMs:      500,
			MemoryLimitBytes: 128,
		},
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}

	reader := &fakeReader{messages: []kafkago.Message{{Key: []byte("submission-1"), Value: payload}}}
	consumer := newConsumer(reader, nil)

	submission, err := consumer.NextSubmission(context.Background())
	if err != nil {
		t.Fatalf("NextSubmission returned error: %v", err)
	}

	if submission.ID != "submission-1" {
		t.Fatalf("expected submission ID from key, got %q", submission.ID)
	}
	if submission.Solution != envelope.Solution || submission.Tests != envelope.Tests {
		t.Fatalf("unexpected sources: %+v", submission)
	}
	if submission.Limits.TimeLimit != 500*time.Millisecond {
		t.Fatalf("unexpected time limit: %v", submission.Limits.TimeLimit)
	}
	if submission.Limits.MemoryLimitBytes != 128 {
		t.Fatalf("unexpected memory limit: %d", submission.Limits.MemoryLimitBytes)
	}
}

func TestConsumerFallsBackToTopicOffsetID(t *testing.T) {
	t.Parallel()

	payload, _ := json.Marshal(submissionEnvelope{Tests: "assert add(2,3)==5"})
	reader := &fakeReader{messages: []kafkago.Message{{Topic: "submissions", Offset: 7, Value: payload}}}

	submission, err := newConsumer(reader, nil).NextSubmission(context.Background())
	if err != nil {
		t.Fatalf("NextSubmission returned error: %v", err)
	}
	if submission.ID != "submissions:7" {
		t.Fatalf("unexpected ID %q", submission.ID)
	}
	if submission.Solution != "" {
		t.Fatalf("expected empty solution to be accepted")
	}
}

func TestConsumerSkipsInvalidMessages(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		payload []byte
		match   string
	}{
		{
			name:    "missing tests",
			payload: mustJSON(t, submissionEnvelope{Solution: "x = 1"}),
			match:   "missing tests",
		},
		{
			name:    "unknown type",
			payload: mustJSON(t, submissionEnvelope{Type: "weird", Tests: "assert True"}),
			match:   "unknown message type",
		},
		{
			name:    "malformed json",
			payload: []byte("{"),
			match:   "decode message",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := decodeSubmissionMessage(kafkago.Message{Value: tc.payload}); !errors.Is(err, errInvalidMessage) || !strings.Contains(err.Error(), tc.match) {
				t.Fatalf("expected invalid message error containing %q, got %v", tc.match, err)
			}

			core, logs := observer.New(zap.WarnLevel)
			valid := mustJSON(t, submissionEnvelope{ID: "ok", Tests: "assert True"})
			reader := &fakeReader{messages: []kafkago.Message{
				{Offset: 1, Value: tc.payload},
				{Offset: 2, Value: valid},
			}}
			consumer := newConsumer(reader, logging.FromZap(zap.New(core)))

			submission, err := consumer.NextSubmission(context.Background())
			if err != nil {
				t.Fatalf("NextSubmission returned error: %v", err)
			}
			if submission.ID != "ok" {
				t.Fatalf("expected the valid submission after the skipped one, got %q", submission.ID)
			}
			if len(reader.committed) != 1 || reader.committed[0].Offset != 1 {
				t.Fatalf("expected only the skipped message to be committed, got %+v", reader.committed)
			}
			if logs.FilterMessage("Skipping invalid submission message").Len() != 1 {
				t.Fatalf("expected one warning for the skipped message")
			}
		})
	}
}

func TestConsumerAckCommitsSubmission(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{messages: []kafkago.Message{
		{Offset: 4, Key: []byte("a"), Value: mustJSON(t, submissionEnvelope{Tests: "assert True"})},
	}}
	consumer := newConsumer(reader, nil)

	submission, err := consumer.NextSubmission(context.Background())
	if err != nil {
		t.Fatalf("NextSubmission returned error: %v", err)
	}
	if len(reader.committed) != 0 {
		t.Fatalf("submission must stay uncommitted until acked")
	}

	if err := consumer.Ack(context.Background(), submission.ID); err != nil {
		t.Fatalf("Ack returned error: %v", err)
	}
	if err := consumer.Ack(context.Background(), submission.ID); err != nil {
		t.Fatalf("second Ack should be a no-op, got %v", err)
	}
	if len(reader.committed) != 1 || reader.committed[0].Offset != 4 {
		t.Fatalf("expected offset 4 committed once, got %+v", reader.committed)
	}

	reader.commitErr = errors.New("rebalance in progress")
	reader.messages = append(reader.messages, kafkago.Message{Offset: 5, Key: []byte("b"), Value: mustJSON(t, submissionEnvelope{Tests: "assert True"})})
	if _, err := consumer.NextSubmission(context.Background()); err != nil {
		t.Fatalf("NextSubmission returned error: %v", err)
	}
	if err := consumer.Ack(context.Background(), "b"); err == nil || !strings.Contains(err.Error(), "rebalance") {
		t.Fatalf("expected commit error, got %v", err)
	}
}

func fetchAll(t *testing.T, consumer *Consumer, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		submission, err := consumer.NextSubmission(context.Background())
		if err != nil {
			t.Fatalf("NextSubmission %d returned error: %v", i, err)
		}
		ids = append(ids, submission.ID)
	}
	return ids
}

func committedOffsets(reader *fakeReader) []int64 {
	offsets := make([]int64, 0, len(reader.committed))
	for _, msg := range reader.committed {
		offsets = append(offsets, msg.Offset)
	}
	return offsets
}

func TestConsumerOutOfOrderAckHoldsBackLaterOffsets(t *testing.T) {
	t.Parallel()

	valid := mustJSON(t, submissionEnvelope{Tests: "assert True"})
	reader := &fakeReader{messages: []kafkago.Message{
		{Offset: 10, Key: []byte("a"), Value: valid},
		{Offset: 11, Key: []byte("b"), Value: valid},
		{Offset: 12, Key: []byte("c"), Value: valid},
	}}
	consumer := newConsumer(reader, nil)
	fetchAll(t, consumer, 3)

	for _, id := range []string{"c", "b"} {
		if err := consumer.Ack(context.Background(), id); err != nil {
			t.Fatalf("Ack(%s) returned error: %v", id, err)
		}
	}
	if len(reader.committed) != 0 {
		t.Fatalf("offsets after a running submission must stay uncommitted, got %v", committedOffsets(reader))
	}

	if err := consumer.Ack(context.Background(), "a"); err != nil {
		t.Fatalf("Ack(a) returned error: %v", err)
	}
	if got := committedOffsets(reader); len(got) != 1 || got[0] != 12 {
		t.Fatalf("expected a single commit up to offset 12, got %v", got)
	}
}

func TestConsumerSkippedMessageWaitsForEarlierSubmission(t *testing.T) {
	t.Parallel()

	valid := mustJSON(t, submissionEnvelope{Tests: "assert True"})
	reader := &fakeReader{messages: []kafkago.Message{
		{Offset: 1, Key: []byte("a"), Value: valid},
		{Offset: 2, Value: []byte("{")},
		{Offset: 3, Key: []byte("b"), Value: valid},
	}}
	consumer := newConsumer(reader, nil)
	if ids := fetchAll(t, consumer, 2); ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("unexpected submissions %v", ids)
	}
	if len(reader.committed) != 0 {
		t.Fatalf("skipped message must not commit past a running submission, got %v", committedOffsets(reader))
	}

	if err := consumer.Ack(context.Background(), "a"); err != nil {
		t.Fatalf("Ack(a) returned error: %v", err)
	}
	if err := consumer.Ack(context.Background(), "b"); err != nil {
		t.Fatalf("Ack(b) returned error: %v", err)
	}
	if got := committedOffsets(reader); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected commits at 2 then 3, got %v", got)
	}
}

func TestConsumerPartitionsCommitIndependently(t *testing.T) {
	t.Parallel()

	valid := mustJSON(t, submissionEnvelope{Tests: "assert True"})
	reader := &fakeReader{messages: []kafkago.Message{
		{Partition: 0, Offset: 5, Key: []byte("slow"), Value: valid},
		{Partition: 1, Offset: 3, Key: []byte("fast"), Value: valid},
	}}
	consumer := newConsumer(reader, nil)
	fetchAll(t, consumer, 2)

	if err := consumer.Ack(context.Background(), "fast"); err != nil {
		t.Fatalf("Ack returned error: %v", err)
	}
	if len(reader.committed) != 1 || reader.committed[0].Partition != 1 || reader.committed[0].Offset != 3 {
		t.Fatalf("expected partition 1 to commit on its own, got %+v", reader.committed)
	}
}

func TestConsumerRetriesFailedCommit(t *testing.T) {
	t.Parallel()

	valid := mustJSON(t, submissionEnvelope{Tests: "assert True"})
	reader := &fakeReader{messages: []kafkago.Message{
		{Offset: 1, Key: []byte("a"), Value: valid},
		{Offset: 2, Key: []byte("b"), Value: valid},
	}}
	consumer := newConsumer(reader, nil)
	fetchAll(t, consumer, 2)

	reader.commitErr = errors.New("coordinator not available")
	if err := consumer.Ack(context.Background(), "a"); err == nil {
		t.Fatalf("expected commit error")
	}
	reader.commitErr = nil
	if err := consumer.Ack(context.Background(), "b"); err != nil {
		t.Fatalf("Ack(b) returned error: %v", err)
	}
	if got := committedOffsets(reader); len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected the retried commit to cover offset 2, got %v", got)
	}
}

func TestConsumerNextSubmissionDoneMessage(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{messages: []kafkago.Message{{Value: DoneMessage()}}}
	consumer := newConsumer(reader, nil)

	_, err := consumer.NextSubmission(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF for done message, got %v", err)
	}
	if len(reader.committed) != 1 {
		t.Fatalf("expected done message to be committed")
	}
}

func TestEncodeSubmissionRoundTripsThroughConsumer(t *testing.T) {
	t.Parallel()

	payload, err := EncodeSubmission(evaluation.Submission{
		ID:       "abc",
		Solution: "def f(): return 1",
		Tests:    "assert f() == 1",
		Limits:   execution.RunLimits{TimeLimit: 2 * time.Second},
	})
	if err != nil {
		t.Fatalf("EncodeSubmission returned error: %v", err)
	}

	reader := &fakeReader{messages: []kafkago.Message{{Value: payload}}}
	submission, err := newConsumer(reader, nil).NextSubmission(context.Background())
	if err != nil {
		t.Fatalf("NextSubmission returned error: %v", err)
	}
	if submission.ID != "abc" || submission.Limits.TimeLimit != 2*time.Second {
		t.Fatalf("unexpected submission %+v", submission)
	}
}

func TestConsumerCloseProxiesUnderlyingReader(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{}
	consumer := newConsumer(reader, nil)

	if err := consumer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !reader.closed {
		t.Fatalf("expected reader to be closed")
	}
}

func TestPublisherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewPublisher(PublisherConfig{}); err == nil {
		t.Fatalf("expected error when brokers missing")
	}
	if _, err := NewPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}}); err == nil {
		t.Fatalf("expected error when topic missing")
	}
}

func TestNewPublisherValidConfig(t *testing.T) {
	t.Parallel()

	publisher, err := NewPublisher(PublisherConfig{Brokers: []string{"localhost:9092"}, Topic: "evaluation-reports"})
	if err != nil {
		t.Fatalf("NewPublisher returned error: %v", err)
	}
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestPublisherPublishesReport(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := newPublisher(writer)

	result := evaluation.ExecutionError(evaluation.KindRuntimeFault, "NameError: name 'add' is not defined")
	result.ErrorType = "NameError"
	result.Trace = "Traceback ..."
	result.Line = 3
	result.Duration = 1500 * time.Millisecond

	report := evaluation.Report{
		Submission: evaluation.Submission{ID: "submission-42"},
		Result:     result,
	}

	if err := publisher.PublishReport(context.Background(), report); err != nil {
		t.Fatalf("PublishReport returned error: %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(writer.messages))
	}
	if string(writer.messages[0].Key) != "submission-42" {
		t.Fatalf("unexpected key %q", writer.messages[0].Key)
	}
	headers := map[string]string{}
	for _, h := range writer.messages[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers[headerOutcome] != "execution_error" || headers[headerErrorKind] != "runtime_fault" {
		t.Fatalf("unexpected headers %v", headers)
	}

	var envelope reportEnvelope
	if err := json.Unmarshal(writer.messages[0].Value, &envelope); err != nil {
		t.Fatalf("failed to unmarshal report envelope: %v", err)
	}

	if envelope.ID != "submission-42" {
		t.Fatalf("unexpected ID in envelope: %q", envelope.ID)
	}
	if envelope.Outcome != evaluation.OutcomeExecutionError {
		t.Fatalf("unexpected outcome: %q", envelope.Outcome)
	}
	if envelope.ErrorKind != evaluation.KindRuntimeFault || envelope.ErrorType != "NameError" {
		t.Fatalf("unexpected error classification: %+v", envelope)
	}
	if envelope.Line != 3 {
		t.Fatalf("expected line 3, got %d", envelope.Line)
	}
	if envelope.DurationMs != 1500 {
		t.Fatalf("expected duration 1500ms, got %d", envelope.DurationMs)
	}
	if envelope.Timestamp.IsZero() {
		t.Fatalf("expected timestamp")
	}

	if err := publisher.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !writer.closed {
		t.Fatalf("expected writer to be closed")
	}
}

func TestPublisherCloseWithNilWriter(t *testing.T) {
	t.Parallel()

	publisher := &Publisher{}
	if err := publisher.Close(); err != nil {
		t.Fatalf("Close should succeed when writer nil, got %v", err)
	}
}

func TestPublisherPublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("writer nil", func(t *testing.T) {
		publisher := &Publisher{}
		err := publisher.PublishReport(context.Background(), evaluation.Report{})
		if err == nil || !strings.Contains(err.Error(), "not initialized") {
			t.Fatalf("expected not initialized error, got %v", err)
		}
	})

	t.Run("writer failure", func(t *testing.T) {
		publisher := newPublisher(&fakeWriter{err: errors.New("boom")})
		err := publisher.PublishReport(context.Background(), evaluation.Report{Submission: evaluation.Submission{ID: "123"}})
		if err == nil || !strings.Contains(err.Error(), "write message") {
			t.Fatalf("expected write failure, got %v", err)
		}
	})
}

type fakeReader struct {
	messages  []kafkago.Message
	err       error
	index     int
	closed    bool
	committed []kafkago.Message
	commitErr error
}

type fakeWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	if r.index < len(r.messages) {
		msg := r.messages[r.index]
		r.index++
		return msg, nil
	}
	if r.err != nil {
		return kafkago.Message{}, r.err
	}
	return kafkago.Message{}, io.EOF
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

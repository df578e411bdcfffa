package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/logging"
	"dsacoach/internal/ports"
)

// Config describes how to connect to a Kafka cluster for consuming submissions.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
	// Logger receives a warning for every message that is skipped. Optional.
	Logger logging.Logger
}

var _ ports.SubmissionProducer = (*Consumer)(nil)

// Consumer reads submission envelopes from a topic.
//
// A submission counts as finished only when Ack is called. Kafka commits are
// positional, so per partition only the unbroken run of finished messages at
// the head of the fetch order is committed; a submission still being
// evaluated holds back every later offset and is redelivered after a crash.
// Malformed messages are logged and finish immediately; they never stop the
// stream.
type Consumer struct {
	reader messageReader
	logger logging.Logger

	mu         sync.Mutex
	pending    map[string][]kafkago.Message
	partitions map[partitionKey]*offsetTracker
}

type partitionKey struct {
	topic     string
	partition int
}

// offsetTracker lists the uncommitted messages of one partition in fetch
// order together with the offsets that have finished.
type offsetTracker struct {
	outstanding []kafkago.Message
	done        map[int64]bool
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewConsumer builds a new Consumer from the provided configuration.
func NewConsumer(cfg Config) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "dsacoach-evaluator"
	}
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = time.Second
	}

	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	})
	return newConsumer(reader, cfg.Logger), nil
}

func newConsumer(reader messageReader, logger logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Consumer{
		reader:     reader,
		logger:     logger,
		pending:    make(map[string][]kafkago.Message),
		partitions: make(map[partitionKey]*offsetTracker),
	}
}

// NextSubmission blocks until the next valid submission arrives or the
// context is cancelled. A "done" message ends the stream with io.EOF.
func (c *Consumer) NextSubmission(ctx context.Context) (evaluation.Submission, error) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return evaluation.Submission{}, err
		}

		submission, err := decodeSubmissionMessage(msg)
		switch {
		case err == nil:
			c.mu.Lock()
			c.trackLocked(msg)
			c.pending[submission.ID] = append(c.pending[submission.ID], msg)
			c.mu.Unlock()
			return submission, nil
		case errors.Is(err, io.EOF):
			if cerr := c.finish(ctx, msg); cerr != nil {
				return evaluation.Submission{}, fmt.Errorf("commit done message: %w", cerr)
			}
			return evaluation.Submission{}, io.EOF
		case errors.Is(err, errInvalidMessage):
			c.logger.Warn("Skipping invalid submission message",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			if cerr := c.finish(ctx, msg); cerr != nil {
				return evaluation.Submission{}, fmt.Errorf("commit skipped message: %w", cerr)
			}
		default:
			return evaluation.Submission{}, err
		}
	}
}

// Ack marks the oldest outstanding message of a submission as finished and
// commits whatever that unblocks. Unknown IDs are ignored.
func (c *Consumer) Ack(ctx context.Context, submissionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	queue := c.pending[submissionID]
	if len(queue) == 0 {
		return nil
	}
	msg := queue[0]
	if len(queue) == 1 {
		delete(c.pending, submissionID)
	} else {
		c.pending[submissionID] = queue[1:]
	}

	if err := c.completeLocked(ctx, msg); err != nil {
		return fmt.Errorf("commit submission %s: %w", submissionID, err)
	}
	return nil
}

// finish tracks a message that needs no evaluation and completes it at once.
func (c *Consumer) finish(ctx context.Context, msg kafkago.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackLocked(msg)
	return c.completeLocked(ctx, msg)
}

func (c *Consumer) trackLocked(msg kafkago.Message) {
	key := partitionKey{topic: msg.Topic, partition: msg.Partition}
	tracker, ok := c.partitions[key]
	if !ok {
		tracker = &offsetTracker{done: make(map[int64]bool)}
		c.partitions[key] = tracker
	}
	tracker.outstanding = append(tracker.outstanding, msg)
}

// completeLocked records msg as finished and commits the finished prefix of
// its partition. The commit runs under c.mu so offsets never move backwards.
// On a failed commit the prefix stays tracked and the next completion retries it.
func (c *Consumer) completeLocked(ctx context.Context, msg kafkago.Message) error {
	tracker, ok := c.partitions[partitionKey{topic: msg.Topic, partition: msg.Partition}]
	if !ok {
		return nil
	}
	tracker.done[msg.Offset] = true

	n := 0
	for n < len(tracker.outstanding) && tracker.done[tracker.outstanding[n].Offset] {
		n++
	}
	if n == 0 {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, tracker.outstanding[n-1]); err != nil {
		return err
	}
	for _, m := range tracker.outstanding[:n] {
		delete(tracker.done, m.Offset)
	}
	tracker.outstanding = tracker.outstanding[n:]
	return nil
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

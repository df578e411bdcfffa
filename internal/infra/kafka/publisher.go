package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"dsacoach/internal/domain/evaluation"
	"dsacoach/internal/ports"
)

var _ ports.ReportPublisher = (*Publisher)(nil)

// Header keys set on every report so consumers can route without decoding.
const (
	headerOutcome   = "outcome"
	headerErrorKind = "error_kind"
)

// PublisherConfig configures the Kafka-based evaluation report publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
	// WriteTimeout bounds a single publish. Defaults to 10s.
	WriteTimeout time.Duration
}

// Publisher writes evaluation reports keyed by submission ID, so every
// report for a submission lands on the same partition.
type Publisher struct {
	writer messageWriter
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewPublisher constructs a Publisher using the supplied configuration.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	return newPublisher(&kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           cfg.WriteTimeout,
	}), nil
}

func newPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// PublishReport serializes and writes one report.
func (p *Publisher) PublishReport(ctx context.Context, report evaluation.Report) error {
	if p.writer == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	payload, err := encodeReport(report)
	if err != nil {
		return err
	}

	msg := kafkago.Message{
		Key:   []byte(report.Submission.ID),
		Value: payload,
		Time:  time.Now(),
		Headers: []kafkago.Header{
			{Key: headerOutcome, Value: []byte(report.Result.Outcome)},
			{Key: headerErrorKind, Value: []byte(report.Result.ErrorKind)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close releases the underlying Kafka writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

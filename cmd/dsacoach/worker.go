package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"dsacoach/internal/app/executor"
	"dsacoach/internal/domain/evaluation"
	kafkainfra "dsacoach/internal/infra/kafka"
	"dsacoach/internal/logging"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Evaluate submissions from Kafka and publish the reports",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	flushTraces, err := startTracing(ctx)
	if err != nil {
		return err
	}
	defer flushTraces()

	sb, err := newSandbox(ctx, newMetrics())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sb.Close(); cerr != nil {
			logger.Warn("Failed to close sandbox", "error", cerr)
		}
	}()

	consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.SubmissionsTopic,
		GroupID: cfg.GroupID,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init kafka consumer: %w", err)
	}
	defer func() {
		if cerr := consumer.Close(); cerr != nil {
			logger.Warn("Failed to close kafka consumer", "error", cerr)
		}
	}()

	publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.ResultsTopic,
	})
	if err != nil {
		return fmt.Errorf("init kafka publisher: %w", err)
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Warn("Failed to close kafka publisher", "error", cerr)
		}
	}()

	logger.Info("Worker started",
		"brokers", cfg.KafkaBrokers,
		"topic", cfg.SubmissionsTopic,
		"results_topic", cfg.ResultsTopic,
		"max_parallel", cfg.MaxParallel,
	)

	service := executor.NewService(sb.harness)
	err = service.ExecuteFromProducer(ctx, consumer, cfg.MaxSubmissions, cfg.MaxParallel, publishTo(ctx, publisher, consumer, logger))
	if err != nil {
		return fmt.Errorf("execute submissions: %w", err)
	}
	return nil
}

type acker interface {
	Ack(ctx context.Context, submissionID string) error
}

type reportSink interface {
	PublishReport(ctx context.Context, report evaluation.Report) error
}

// publishTo forwards every report to publisher and then acknowledges the
// submission. A report that fails to publish stays unacknowledged so the
// submission is redelivered. Reports finished during shutdown are still
// published.
func publishTo(ctx context.Context, publisher reportSink, ack acker, log logging.Logger) func(evaluation.Report) {
	ctx = context.WithoutCancel(ctx)
	return func(report evaluation.Report) {
		id := report.Submission.ID
		if err := publisher.PublishReport(ctx, report); err != nil {
			log.Error("Failed to publish report", "submission_id", id, "error", err)
			return
		}
		if err := ack.Ack(ctx, id); err != nil {
			log.Warn("Failed to commit submission offset", "submission_id", id, "error", err)
		}
		log.Debug("Published report", "submission_id", id, "outcome", report.Result.Outcome)
	}
}

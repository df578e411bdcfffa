//go:build integration

// Package testhelpers starts and seeds the Kafka broker used by integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	kafkatc "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const (
	brokerWaitInterval = 500 * time.Millisecond
	brokerWaitTimeout  = 30 * time.Second
	kafkaImage         = "confluentinc/confluent-local:7.7.0"
)

// StartKafka runs a single-broker Kafka container, waits for it, creates the
// given topics and returns the broker address. The test is skipped when Docker
// is unavailable.
func StartKafka(ctx context.Context, t *testing.T, topics ...string) string {
	t.Helper()

	container, err := kafkatc.Run(ctx, kafkaImage)
	if err != nil {
		t.Skipf("skipping Kafka integration test (requires Docker): %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	brokers, err := container.Brokers(ctx)
	if err != nil {
		t.Fatalf("failed to obtain bootstrap servers: %v", err)
	}
	if len(brokers) == 0 {
		t.Fatal("kafka provided zero bootstrap servers")
	}
	broker := brokers[0]

	if err := WaitForKafkaBroker(ctx, broker); err != nil {
		t.Fatalf("wait for broker: %v", err)
	}
	for _, topic := range topics {
		if err := EnsureKafkaTopic(ctx, broker, topic); err != nil {
			t.Fatalf("ensure topic %s: %v", topic, err)
		}
	}
	return broker
}

// WaitForKafkaBroker blocks until the provided broker address accepts connections or the context ends.
func WaitForKafkaBroker(ctx context.Context, broker string) error {
	deadline := time.Now().Add(brokerWaitTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	for time.Now().Before(deadline) {
		conn, err := kafkago.Dial("tcp", broker)
		if err == nil {
			_ = conn.Close()
			return nil
		}

		select {
		case <-time.After(brokerWaitInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("kafka broker %q not ready before timeout", broker)
}

// EnsureKafkaTopic creates the provided topic if it doesn't exist.
func EnsureKafkaTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}

	controllerAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrlConn, err := kafkago.DialContext(ctx, "tcp", controllerAddr)
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer ctrlConn.Close()

	return ctrlConn.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
}

// WriteMessages writes raw payloads to topic, keyed by index.
func WriteMessages(ctx context.Context, broker, topic string, payloads ...[]byte) error {
	writer := &kafkago.Writer{
		Addr:         kafkago.TCP(broker),
		Topic:        topic,
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
	defer writer.Close()

	msgs := make([]kafkago.Message, 0, len(payloads))
	for i, payload := range payloads {
		msgs = append(msgs, kafkago.Message{Key: []byte(strconv.Itoa(i)), Value: payload})
	}
	if err := writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write messages: %w", err)
	}
	return nil
}

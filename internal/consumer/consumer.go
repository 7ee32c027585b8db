// Package consumer provides the optional Kafka ingest path: raw triggering
// payloads consumed from a topic and handed to the processor one at a time.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// MaxPollWait is the maximum time a read blocks waiting for data.
	MaxPollWait = 500 * time.Millisecond
	// CommitInterval is how often offsets are flushed after commit calls.
	CommitInterval = 1 * time.Second
)

// ParseBrokers parses a comma-separated broker list and trims whitespace.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return brokerList
}

// ValidateParams validates the consumer parameters.
func ValidateParams(brokers, topic, groupID string) error {
	if brokers == "" {
		return fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return fmt.Errorf("groupID cannot be empty")
	}
	return nil
}

// Consumer wraps a Kafka reader over the triggering-payload topic.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a Kafka consumer configured for at-least-once
// delivery. StartOffset only applies when no committed offset exists for the
// group; FirstOffset means a fresh group reads everything.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := ValidateParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := ParseBrokers(brokers)
	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokerList,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        MaxPollWait,
		CommitInterval: CommitInterval,
		StartOffset:    kafka.FirstOffset,
	})

	return &Consumer{reader: reader, topic: topic}, nil
}

// ReadMessage reads the next raw triggering payload from the topic.
func (c *Consumer) ReadMessage(ctx context.Context) ([]byte, *kafka.Message, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	return msg.Value, &msg, nil
}

// CommitMessage commits the offset for the given message.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}

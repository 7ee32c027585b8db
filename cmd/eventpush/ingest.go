package main

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/processor"
)

// payloadReader reads raw triggering payloads from the topic and commits
// their offsets once handled.
type payloadReader interface {
	ReadMessage(ctx context.Context) ([]byte, *kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
}

// payloadProcessor runs one triggering payload through the invocation flow.
type payloadProcessor interface {
	Process(ctx context.Context, payload []byte) *processor.Outcome
}

// ingestPayloads reads raw triggering payloads from Kafka and runs each one
// through the processor. The path is fire-and-forget: outcomes are logged,
// offsets committed, and a per-message failure never stops the loop.
func ingestPayloads(ctx context.Context, reader payloadReader, proc payloadProcessor) {
	slog.Info("Starting Kafka ingest loop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Kafka ingest loop stopped")
			return
		default:
			payload, msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to read triggering payload", "error", err)
				continue
			}

			outcome := proc.Process(ctx, payload)
			slog.Info("Processed Kafka payload",
				"invocation_id", outcome.InvocationID,
				"kind", outcome.Kind,
				"status", outcome.Status,
				"message", outcome.Message,
			)

			commitOffset(ctx, reader, msg)
		}
	}
}

// commitOffset commits the Kafka offset for the given message.
func commitOffset(ctx context.Context, reader payloadReader, msg *kafka.Message) {
	if err := reader.CommitMessage(ctx, msg); err != nil {
		slog.Error("Failed to commit offset", "error", err)
	}
}

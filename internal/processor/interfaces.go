package processor

import (
	"context"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/invocation"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/sender"
)

// JobReporter reports pipeline-job outcomes back to the orchestrator.
type JobReporter interface {
	// PutJobSuccess marks the job as succeeded with a summary message.
	PutJobSuccess(ctx context.Context, jobID, message string) error

	// PutJobFailure marks the job as failed with a human-readable message.
	PutJobFailure(ctx context.Context, jobID, message string) error
}

// EventNormalizer produces canonical records from classified invocations.
type EventNormalizer interface {
	// FromDirectCall decodes the partial record a direct call carries.
	FromDirectCall(raw []byte) (*event.Event, error)

	// FromPipelineJob runs the full default-filling sequence for a job.
	FromPipelineJob(ctx context.Context, job *invocation.PipelineJob) (*event.Event, error)
}

// EventSubmitter validates a record and submits it to the monitoring API.
type EventSubmitter interface {
	Submit(ctx context.Context, e *event.Event) (*sender.Result, error)
}

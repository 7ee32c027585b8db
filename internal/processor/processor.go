// Package processor composes classification, normalization and submission
// into the single-invocation flow, and reports the outcome back to the
// triggering caller: the orchestrator's job result API for pipeline jobs, a
// direct outcome envelope otherwise.
package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/dynatrace"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/invocation"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/sender"
)

// Status is the caller-visible class of an invocation outcome.
type Status string

const (
	// StatusSuccess: the monitoring API accepted the event.
	StatusSuccess Status = "SUCCESS"
	// StatusAcknowledged: a deployment notification with CREATED status was
	// received and logged. No further action is defined for this branch.
	StatusAcknowledged Status = "ACKNOWLEDGED"
	// StatusIgnored: a notification that is not a CREATED deployment signal.
	StatusIgnored Status = "IGNORED"
	// StatusInvalidPayload: the triggering payload could not be classified
	// or decoded.
	StatusInvalidPayload Status = "INVALID_PAYLOAD"
	// StatusValidationFailed: a mandatory field was missing; no HTTP call
	// was made.
	StatusValidationFailed Status = "VALIDATION_FAILED"
	// StatusLookupFailed: job-context lookup or artifact download failed.
	StatusLookupFailed Status = "LOOKUP_FAILED"
	// StatusNoMatchingEntities: the API rejected the event because the
	// attach rules matched no monitored entity.
	StatusNoMatchingEntities Status = "NO_MATCHING_ENTITIES"
	// StatusFailed: any other submission failure.
	StatusFailed Status = "FAILED"
)

// Succeeded reports whether the status is one of the non-error classes.
func (s Status) Succeeded() bool {
	switch s {
	case StatusSuccess, StatusAcknowledged, StatusIgnored:
		return true
	}
	return false
}

// Outcome is the envelope returned to direct callers and logged for every
// invocation.
type Outcome struct {
	InvocationID string             `json:"invocationId"`
	Kind         invocation.Kind    `json:"kind"`
	Status       Status             `json:"status"`
	Message      string             `json:"message"`
	AttachRules  *event.AttachRules `json:"attachRules,omitempty"`
}

// Processor runs one triggering payload through the full pipeline.
type Processor struct {
	normalizer EventNormalizer
	submitter  EventSubmitter
	jobs       JobReporter
	metrics    MetricsRecorder
}

// New creates a processor with no-op metrics.
func New(normalizer EventNormalizer, submitter EventSubmitter, jobs JobReporter) *Processor {
	return NewWithMetrics(normalizer, submitter, jobs, nil)
}

// NewWithMetrics creates a processor with the provided metrics recorder. A
// nil recorder falls back to the no-op implementation.
func NewWithMetrics(normalizer EventNormalizer, submitter EventSubmitter, jobs JobReporter, m MetricsRecorder) *Processor {
	if m == nil {
		m = NoOpMetrics{}
	}
	return &Processor{
		normalizer: normalizer,
		submitter:  submitter,
		jobs:       jobs,
		metrics:    m,
	}
}

// Process classifies the payload, runs the branch it selects, and returns
// the outcome. Failures are already reported to the orchestrator where that
// applies; the returned outcome is for the immediate caller.
func (p *Processor) Process(ctx context.Context, payload []byte) *Outcome {
	start := time.Now()
	p.metrics.RecordReceived()

	out := &Outcome{InvocationID: uuid.NewString()}

	inv, err := invocation.Classify(payload)
	if err != nil {
		out.Kind = invocation.KindDirectCall
		out.Status = StatusInvalidPayload
		out.Message = err.Error()
		p.metrics.RecordError()
		slog.Error("Failed to classify triggering payload",
			"invocation_id", out.InvocationID,
			"error", err,
		)
		return out
	}
	out.Kind = inv.Kind

	switch inv.Kind {
	case invocation.KindNotification:
		p.processNotification(inv, out)
	case invocation.KindPipelineJob:
		p.processPipelineJob(ctx, inv.Job, out)
	default:
		p.processDirectCall(ctx, inv.Direct, out)
	}

	if out.Status.Succeeded() {
		p.metrics.RecordProcessed(time.Since(start))
	} else {
		p.metrics.RecordError()
	}

	slog.Info("Invocation processed",
		"invocation_id", out.InvocationID,
		"kind", out.Kind,
		"status", out.Status,
	)
	return out
}

// processNotification handles the pub/sub branch: log a CREATED deployment
// signal and stop. No submission happens here; the branch is an acknowledged
// no-op by design of the upstream integration.
func (p *Processor) processNotification(inv *invocation.Invocation, out *Outcome) {
	n := inv.Notification
	if n.IsCreated() {
		slog.Info("Deployment notification received",
			"invocation_id", out.InvocationID,
			"deployment_id", n.DeploymentID,
			"status", n.Status,
			"application", n.ApplicationName,
			"deployment_group", n.DeploymentGroupName,
		)
		out.Status = StatusAcknowledged
		out.Message = "deployment notification acknowledged"
		p.metrics.IncrementCustom(counterAcknowledged)
		return
	}

	slog.Debug("Ignoring notification without a CREATED deployment signal",
		"invocation_id", out.InvocationID,
		"message", inv.RawMessage,
	)
	out.Status = StatusIgnored
	out.Message = "notification carries no CREATED deployment signal"
	p.metrics.IncrementCustom(counterIgnored)
}

// processPipelineJob normalizes and submits a job-triggered event, then
// reports the result through the orchestrator's job API.
func (p *Processor) processPipelineJob(ctx context.Context, job *invocation.PipelineJob, out *Outcome) {
	e, err := p.normalizer.FromPipelineJob(ctx, job)
	if err != nil {
		out.Status = StatusLookupFailed
		out.Message = err.Error()
		p.metrics.IncrementCustom(counterLookupFailed)
		p.reportJobFailure(ctx, job.ID, out)
		return
	}

	p.submit(ctx, e, out)

	if out.Status == StatusSuccess {
		if err := p.jobs.PutJobSuccess(ctx, job.ID, out.Message); err != nil {
			slog.Error("Failed to report job success",
				"invocation_id", out.InvocationID,
				"job_id", job.ID,
				"error", err,
			)
		}
		return
	}
	p.reportJobFailure(ctx, job.ID, out)
}

// processDirectCall decodes and submits the event a direct call carries.
func (p *Processor) processDirectCall(ctx context.Context, raw []byte, out *Outcome) {
	e, err := p.normalizer.FromDirectCall(raw)
	if err != nil {
		out.Status = StatusInvalidPayload
		out.Message = err.Error()
		return
	}
	p.submit(ctx, e, out)
}

// submit runs validation and submission, mapping the result onto the
// outcome envelope.
func (p *Processor) submit(ctx context.Context, e *event.Event, out *Outcome) {
	result, err := p.submitter.Submit(ctx, e)
	if err != nil {
		out.Message = err.Error()
		if sender.IsValidationError(err) {
			out.Status = StatusValidationFailed
			p.metrics.IncrementCustom(counterValidationFailed)
		} else {
			out.Status = StatusFailed
			p.metrics.IncrementCustom(counterSubmissionFailed)
		}
		return
	}

	out.Message = result.Message()
	switch result.Outcome {
	case dynatrace.OutcomeSuccess:
		out.Status = StatusSuccess
		p.metrics.IncrementCustom(counterSubmitted)
	case dynatrace.OutcomeNoMatchingEntities:
		out.Status = StatusNoMatchingEntities
		out.AttachRules = result.AttachRules
		p.metrics.IncrementCustom(counterNoMatchingEntities)
	default:
		out.Status = StatusFailed
		p.metrics.IncrementCustom(counterSubmissionFailed)
	}
}

// reportJobFailure forwards a failed outcome to the orchestrator's job API.
func (p *Processor) reportJobFailure(ctx context.Context, jobID string, out *Outcome) {
	if err := p.jobs.PutJobFailure(ctx, jobID, out.Message); err != nil {
		slog.Error("Failed to report job failure",
			"invocation_id", out.InvocationID,
			"job_id", jobID,
			"error", err,
		)
	}
}

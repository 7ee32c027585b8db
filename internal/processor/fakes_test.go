package processor

import (
	"context"
	"errors"
	"time"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/dynatrace"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/invocation"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/sender"
)

// FakeNormalizer is a test fake for EventNormalizer.
type FakeNormalizer struct {
	Event       *event.Event
	DirectErr   error
	PipelineErr error

	DirectCalls   int
	PipelineCalls int
	GotJob        *invocation.PipelineJob
}

func (f *FakeNormalizer) FromDirectCall(raw []byte) (*event.Event, error) {
	f.DirectCalls++
	if f.DirectErr != nil {
		return nil, f.DirectErr
	}
	return f.Event, nil
}

func (f *FakeNormalizer) FromPipelineJob(_ context.Context, job *invocation.PipelineJob) (*event.Event, error) {
	f.PipelineCalls++
	f.GotJob = job
	if f.PipelineErr != nil {
		return nil, f.PipelineErr
	}
	return f.Event, nil
}

// FakeSubmitter is a test fake for EventSubmitter.
type FakeSubmitter struct {
	Result *sender.Result
	Err    error
	Calls  int
}

func (f *FakeSubmitter) Submit(_ context.Context, e *event.Event) (*sender.Result, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Result, nil
}

// FakeJobReporter is a test fake for JobReporter.
type FakeJobReporter struct {
	SuccessErr error
	FailureErr error

	Successes []string
	Failures  []string
	Messages  []string
}

func (f *FakeJobReporter) PutJobSuccess(_ context.Context, jobID, message string) error {
	f.Successes = append(f.Successes, jobID)
	f.Messages = append(f.Messages, message)
	return f.SuccessErr
}

func (f *FakeJobReporter) PutJobFailure(_ context.Context, jobID, message string) error {
	f.Failures = append(f.Failures, jobID)
	f.Messages = append(f.Messages, message)
	return f.FailureErr
}

// FakeMetrics is a test fake for MetricsRecorder.
type FakeMetrics struct {
	Received  int
	Processed int
	Errors    int
	Custom    map[string]int
}

func (f *FakeMetrics) RecordReceived()                 { f.Received++ }
func (f *FakeMetrics) RecordProcessed(_ time.Duration) { f.Processed++ }
func (f *FakeMetrics) RecordError()                    { f.Errors++ }

func (f *FakeMetrics) IncrementCustom(name string) {
	if f.Custom == nil {
		f.Custom = make(map[string]int)
	}
	f.Custom[name]++
}

func successResult() *sender.Result {
	return &sender.Result{
		Outcome:  dynatrace.OutcomeSuccess,
		Response: &dynatrace.Response{StatusCode: 200},
		AttachRules: &event.AttachRules{
			TagRule: []event.TagRule{{MeTypes: []string{"SERVICE"}}},
		},
	}
}

var errBoom = errors.New("boom")

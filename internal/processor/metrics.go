package processor

import "time"

// Per-outcome counter names reported through IncrementCustom.
const (
	counterSubmitted          = "events_submitted"
	counterNoMatchingEntities = "events_no_matching_entities"
	counterValidationFailed   = "events_validation_failed"
	counterLookupFailed       = "events_lookup_failed"
	counterSubmissionFailed   = "events_submission_failed"
	counterAcknowledged       = "notifications_acknowledged"
	counterIgnored            = "notifications_ignored"
)

// MetricsRecorder records processing metrics. Defined here so the processor
// can be driven by fakes without importing a metrics backend.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}

// NoOpMetrics discards all metrics.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordReceived()                 {}
func (NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (NoOpMetrics) RecordError()                    {}
func (NoOpMetrics) IncrementCustom(_ string)        {}

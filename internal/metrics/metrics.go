// Package metrics provides metrics recording for the event-push service.
// The null object pattern keeps nil checks out of the processing path: when
// no collector is configured, a NoOp recorder stands in.
package metrics

import "time"

// Recorder records invocation metrics. Implementations may report to a
// backend (Redis) or discard everything.
type Recorder interface {
	// RecordReceived increments the count of received invocations.
	RecordReceived()

	// RecordProcessed records a completed invocation with its latency.
	RecordProcessed(latency time.Duration)

	// RecordError increments the processing error counter.
	RecordError()

	// IncrementCustom increments a named counter, used for per-outcome
	// counts.
	IncrementCustom(name string)
}

// NoOp discards all metrics. Used when no metrics backend is configured.
type NoOp struct{}

// NewNoOp creates a no-op recorder.
func NewNoOp() *NoOp {
	return &NoOp{}
}

func (n *NoOp) RecordReceived()                 {}
func (n *NoOp) RecordProcessed(_ time.Duration) {}
func (n *NoOp) RecordError()                    {}
func (n *NoOp) IncrementCustom(_ string)        {}

var _ Recorder = (*NoOp)(nil)

// Package handlers provides the HTTP handlers for the event-push API.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/metrics"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/processor"
)

// maxBodyBytes caps the accepted triggering payload size.
const maxBodyBytes = 1 << 20

// InvocationProcessor runs one triggering payload through the pipeline.
type InvocationProcessor interface {
	Process(ctx context.Context, payload []byte) *processor.Outcome
}

// MetricsSource exposes the service metrics snapshot.
type MetricsSource interface {
	Snapshot() *metrics.ServiceMetrics
}

// Handlers wraps dependencies for the HTTP handlers. A nil metrics source
// disables the metrics endpoint.
type Handlers struct {
	processor InvocationProcessor
	metrics   MetricsSource
}

// NewHandlers creates a handlers instance.
func NewHandlers(p InvocationProcessor, m MetricsSource) *Handlers {
	return &Handlers{processor: p, metrics: m}
}

// PushEvent accepts any triggering payload, runs it through the processor,
// and responds with the outcome envelope. The HTTP status follows the
// outcome class.
func (h *Handlers) PushEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	outcome := h.processor.Process(r.Context(), body)
	writeJSON(w, statusFor(outcome.Status), outcome)
}

// Metrics returns the current service metrics snapshot, or 404 when metrics
// collection is not configured.
func (h *Handlers) Metrics(w http.ResponseWriter, _ *http.Request) {
	if h.metrics == nil {
		http.Error(w, "metrics collection is not enabled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// statusFor maps an outcome class onto an HTTP status. Validation problems
// and unmatched attach rules are the caller's to fix (400); lookup and
// submission failures are upstream problems (502).
func statusFor(s processor.Status) int {
	switch s {
	case processor.StatusSuccess, processor.StatusAcknowledged, processor.StatusIgnored:
		return http.StatusOK
	case processor.StatusInvalidPayload, processor.StatusValidationFailed, processor.StatusNoMatchingEntities:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

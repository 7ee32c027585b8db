// Package sender validates canonical event records, builds the wire payload,
// submits it to the monitoring API, and classifies the result into a
// caller-visible outcome.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/dynatrace"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
)

// Validation errors, one named sentinel per mandatory field. Validation
// short-circuits on the first failure in declaration order.
var (
	ErrMissingAPIToken       = errors.New("dtApiToken is missing: set it on the request or configure the service token")
	ErrMissingTenantURL      = errors.New("dtTenantUrl is missing: set it on the request or configure the service tenant URL")
	ErrMissingAttachRules    = errors.New("attachRules is missing or empty: the event must attach to at least one entity or tag rule")
	ErrMissingEventType      = errors.New("eventType is missing")
	ErrMissingAnnotationType = errors.New("annotationType is mandatory for CUSTOM_ANNOTATION events")
	ErrMissingDeploymentName = errors.New("deploymentName is mandatory for CUSTOM_DEPLOYMENT events")
)

// IsValidationError reports whether err is one of the named validation
// sentinels, as opposed to a transport or lookup failure.
func IsValidationError(err error) bool {
	for _, sentinel := range []error{
		ErrMissingAPIToken,
		ErrMissingTenantURL,
		ErrMissingAttachRules,
		ErrMissingEventType,
		ErrMissingAnnotationType,
		ErrMissingDeploymentName,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// API is the monitoring-API surface the sender needs: process-wide
// coordinates plus the event POST.
type API interface {
	Token() string
	TenantURL() string
	PostEvent(ctx context.Context, tenantURL, token string, payload *event.Payload) (*dynatrace.Response, error)
}

// Result is the classified outcome of one submission.
type Result struct {
	Outcome  dynatrace.Outcome
	Response *dynatrace.Response

	// AttachRules echoes the rules that were submitted so a
	// no-matching-entities outcome can be diagnosed.
	AttachRules *event.AttachRules
}

// Message renders the result for job reporting and API responses.
func (r *Result) Message() string {
	switch r.Outcome {
	case dynatrace.OutcomeSuccess:
		return "event submitted successfully"
	case dynatrace.OutcomeNoMatchingEntities:
		return "no monitored entities matched the attach rules; check the tag configuration"
	default:
		return fmt.Sprintf("event submission failed with status %d: %s", r.Response.StatusCode, r.Response.Body)
	}
}

// Sender submits canonical records to the monitoring API.
type Sender struct {
	api API

	// now is the submission clock, replaceable in tests.
	now func() time.Time
}

// New builds a sender over the API configuration.
func New(api API) *Sender {
	return &Sender{api: api, now: time.Now}
}

// Validate checks the mandatory fields in fixed order, returning the first
// missing one. Coordinates first, then attach rules and event type, then the
// field the event type makes mandatory.
func Validate(e *event.Event) error {
	if e.APIToken == "" {
		return ErrMissingAPIToken
	}
	if e.TenantURL == "" {
		return ErrMissingTenantURL
	}
	if e.AttachRules.Empty() {
		return ErrMissingAttachRules
	}
	if e.EventType == "" {
		return ErrMissingEventType
	}
	switch e.EventType {
	case event.TypeAnnotation:
		if e.AnnotationType == "" {
			return ErrMissingAnnotationType
		}
	case event.TypeDeployment:
		if e.DeploymentName == "" {
			return ErrMissingDeploymentName
		}
	}
	return nil
}

// Submit applies the process-wide coordinate defaults, validates the record,
// and POSTs the wire payload. A validation failure returns before any HTTP
// call; a transport failure returns the error unclassified.
func (s *Sender) Submit(ctx context.Context, e *event.Event) (*Result, error) {
	e.DefaultAPIToken(s.api.Token())
	e.DefaultTenantURL(s.api.TenantURL())

	if err := Validate(e); err != nil {
		return nil, err
	}

	payload := event.NewPayload(e, s.now())
	resp, err := s.api.PostEvent(ctx, e.TenantURL, e.APIToken, payload)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Outcome:     resp.Classify(),
		Response:    resp,
		AttachRules: e.AttachRules,
	}

	slog.Info("Event submission classified",
		"outcome", result.Outcome,
		"status_code", resp.StatusCode,
		"event_type", e.EventType,
	)
	return result, nil
}

// Package dynatrace provides the process-wide monitoring API configuration,
// the HTTP submission of event payloads, and the classification of API
// responses into caller-visible outcomes.
package dynatrace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
)

// eventsPath is the events API endpoint, joined onto the tenant URL.
const eventsPath = "/api/v1/events"

// noMatchMessage is the error-body fragment the API uses when the attach
// rules resolved to no monitored entity.
const noMatchMessage = "No MEIdentifier do match"

// Outcome is the caller-visible result class of a submission.
type Outcome string

const (
	// OutcomeSuccess: the API accepted the event.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeNoMatchingEntities: the API rejected the event because the
	// attach rules matched no monitored entity. Distinguished from generic
	// failure so callers can diagnose a tag-configuration problem.
	OutcomeNoMatchingEntities Outcome = "NO_MATCHING_ENTITIES"
	// OutcomeFailed: any other rejection or an unparsable response.
	OutcomeFailed Outcome = "FAILED"
)

// APIError is the structured error body returned by the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// classificationRule maps a response pattern — status code plus a predicate
// over the parsed error body — to an outcome. Non-200 responses that match no
// rule classify as generic failure.
type classificationRule struct {
	status  int
	matches func(apiErr *APIError) bool
	outcome Outcome
}

var classificationRules = []classificationRule{
	{
		status:  http.StatusBadRequest,
		matches: func(apiErr *APIError) bool { return strings.Contains(apiErr.Message, noMatchMessage) },
		outcome: OutcomeNoMatchingEntities,
	},
}

// Response is a raw events API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Classify maps the response to an outcome using the classification rules.
func (r *Response) Classify() Outcome {
	if r.StatusCode == http.StatusOK {
		return OutcomeSuccess
	}
	if apiErr := r.apiError(); apiErr != nil {
		for _, rule := range classificationRules {
			if rule.status == r.StatusCode && rule.matches(apiErr) {
				return rule.outcome
			}
		}
	}
	return OutcomeFailed
}

// apiError parses the structured error body, or returns nil when the body is
// not in the API's error shape.
func (r *Response) apiError() *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return nil
	}
	return env.Error
}

// API holds the process-wide destination coordinates and the HTTP client used
// for submissions. It is initialized once at startup and read-only afterwards;
// individual records may still override token and tenant URL.
type API struct {
	token      string
	tenantURL  string
	httpClient *http.Client
}

// New builds the API configuration. A configured tenant URL must be a valid
// HTTP or HTTPS URL; empty coordinates are allowed here and caught per record
// during validation, so direct calls can supply their own.
func New(token, tenantURL string) (*API, error) {
	if tenantURL != "" {
		parsed, err := url.Parse(tenantURL)
		if err != nil {
			return nil, fmt.Errorf("invalid tenant URL %q: %w", tenantURL, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return nil, fmt.Errorf("invalid tenant URL %q: scheme must be http or https", tenantURL)
		}
	}

	return &API{
		token:     token,
		tenantURL: tenantURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Token returns the process-wide API token, possibly empty.
func (a *API) Token() string {
	return a.token
}

// TenantURL returns the process-wide tenant URL, possibly empty.
func (a *API) TenantURL() string {
	return a.tenantURL
}

// PostEvent submits the wire payload to <tenantURL>/api/v1/events with the
// token as the Api-Token authorization credential. The response is returned
// whatever its status; classification is the caller's step. A transport-level
// failure returns an error instead.
func (a *API) PostEvent(ctx context.Context, tenantURL, token string, payload *event.Payload) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	endpoint := strings.TrimSuffix(tenantURL, "/") + eventsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create events API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Token "+token)

	slog.Debug("Submitting event to monitoring API",
		"endpoint", endpoint,
		"event_type", payload.EventType,
	)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read events API response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}

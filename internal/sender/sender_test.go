package sender

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/dynatrace"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
)

// fakeAPI is a test fake for the API interface that counts calls and
// captures the submitted payload.
type fakeAPI struct {
	token     string
	tenantURL string

	status int
	body   string
	err    error

	calls        int
	gotTenantURL string
	gotToken     string
	gotPayload   *event.Payload
}

func (f *fakeAPI) Token() string     { return f.token }
func (f *fakeAPI) TenantURL() string { return f.tenantURL }

func (f *fakeAPI) PostEvent(_ context.Context, tenantURL, token string, payload *event.Payload) (*dynatrace.Response, error) {
	f.calls++
	f.gotTenantURL = tenantURL
	f.gotToken = token
	f.gotPayload = payload
	if f.err != nil {
		return nil, f.err
	}
	return &dynatrace.Response{StatusCode: f.status, Body: []byte(f.body)}, nil
}

func validEvent() *event.Event {
	return &event.Event{
		EventType:      event.TypeDeployment,
		DeploymentName: "svc-a",
		AttachRules: &event.AttachRules{
			TagRule: []event.TagRule{{MeTypes: []string{"SERVICE"}, Tags: []event.Tag{event.StringTag("env:prod")}}},
		},
		APIToken:  "token",
		TenantURL: "https://tenant.example.com",
	}
}

func TestValidate_Order(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *event.Event)
		wantErr error
	}{
		{
			name:    "complete record passes",
			mutate:  func(e *event.Event) {},
			wantErr: nil,
		},
		{
			name: "token reported before attach rules",
			mutate: func(e *event.Event) {
				e.APIToken = ""
				e.AttachRules = nil
			},
			wantErr: ErrMissingAPIToken,
		},
		{
			name: "tenant URL after token",
			mutate: func(e *event.Event) {
				e.TenantURL = ""
				e.AttachRules = nil
			},
			wantErr: ErrMissingTenantURL,
		},
		{
			name:    "missing attach rules",
			mutate:  func(e *event.Event) { e.AttachRules = nil },
			wantErr: ErrMissingAttachRules,
		},
		{
			name:    "empty attach rules",
			mutate:  func(e *event.Event) { e.AttachRules = &event.AttachRules{} },
			wantErr: ErrMissingAttachRules,
		},
		{
			name: "missing event type",
			mutate: func(e *event.Event) {
				e.EventType = ""
			},
			wantErr: ErrMissingEventType,
		},
		{
			name: "annotation without annotation type",
			mutate: func(e *event.Event) {
				e.EventType = event.TypeAnnotation
				e.DeploymentName = ""
			},
			wantErr: ErrMissingAnnotationType,
		},
		{
			name: "deployment without deployment name",
			mutate: func(e *event.Event) {
				e.DeploymentName = ""
			},
			wantErr: ErrMissingDeploymentName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := validEvent()
			tt.mutate(e)
			err := Validate(e)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidationError(t *testing.T) {
	if !IsValidationError(ErrMissingAttachRules) {
		t.Error("IsValidationError(ErrMissingAttachRules) = false")
	}
	if IsValidationError(errors.New("connection refused")) {
		t.Error("IsValidationError(transport error) = true")
	}
}

func TestSubmit_ValidationFailureSkipsHTTP(t *testing.T) {
	api := &fakeAPI{token: "token", tenantURL: "https://tenant.example.com", status: http.StatusOK}
	s := New(api)

	// No attach rules at all: validation must fail before any network call.
	_, err := s.Submit(context.Background(), &event.Event{
		EventType:      event.TypeDeployment,
		DeploymentName: "svc-a",
	})
	if !errors.Is(err, ErrMissingAttachRules) {
		t.Fatalf("Submit() error = %v, want %v", err, ErrMissingAttachRules)
	}
	if api.calls != 0 {
		t.Errorf("PostEvent called %d times, want 0", api.calls)
	}
}

func TestSubmit_GlobalDefaultsApplied(t *testing.T) {
	api := &fakeAPI{token: "global-token", tenantURL: "https://global.example.com", status: http.StatusOK}
	s := New(api)

	e := validEvent()
	e.APIToken = ""
	e.TenantURL = ""

	result, err := s.Submit(context.Background(), e)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if result.Outcome != dynatrace.OutcomeSuccess {
		t.Errorf("Outcome = %v", result.Outcome)
	}
	if api.gotToken != "global-token" || api.gotTenantURL != "https://global.example.com" {
		t.Errorf("submitted with token %q url %q, want the global defaults", api.gotToken, api.gotTenantURL)
	}
}

func TestSubmit_ExplicitCoordinatesWin(t *testing.T) {
	api := &fakeAPI{token: "global-token", tenantURL: "https://global.example.com", status: http.StatusOK}
	s := New(api)

	_, err := s.Submit(context.Background(), validEvent())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if api.gotToken != "token" || api.gotTenantURL != "https://tenant.example.com" {
		t.Errorf("submitted with token %q url %q, want the record's own coordinates", api.gotToken, api.gotTenantURL)
	}
}

func TestSubmit_PayloadFields(t *testing.T) {
	api := &fakeAPI{status: http.StatusOK}
	s := New(api)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	if _, err := s.Submit(context.Background(), validEvent()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	raw, err := json.Marshal(api.gotPayload)
	if err != nil {
		t.Fatalf("Marshal(payload) error = %v", err)
	}
	var wire map[string]any
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("Unmarshal(payload) error = %v", err)
	}

	for _, key := range []string{"start", "end", "source", "eventType", "attachRules", "deploymentName"} {
		if _, ok := wire[key]; !ok {
			t.Errorf("wire payload missing %q", key)
		}
	}
	for _, key := range []string{"annotationType", "annotationDescription", "dtApiToken", "dtTenantUrl"} {
		if _, ok := wire[key]; ok {
			t.Errorf("wire payload must not carry %q", key)
		}
	}
	if wire["start"] != wire["end"] {
		t.Errorf("start %v != end %v, want a point-in-time event", wire["start"], wire["end"])
	}
}

func TestSubmit_OutcomeClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   dynatrace.Outcome
	}{
		{
			name:   "accepted",
			status: http.StatusOK,
			body:   `{"storedEventIds":[1]}`,
			want:   dynatrace.OutcomeSuccess,
		},
		{
			name:   "no matching entities",
			status: http.StatusBadRequest,
			body:   `{"error":{"code":400,"message":"No MEIdentifier do match the attach rule"}}`,
			want:   dynatrace.OutcomeNoMatchingEntities,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `oops`,
			want:   dynatrace.OutcomeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{status: tt.status, body: tt.body}
			result, err := New(api).Submit(context.Background(), validEvent())
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if result.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", result.Outcome, tt.want)
			}
			if tt.want == dynatrace.OutcomeNoMatchingEntities && result.AttachRules.Empty() {
				t.Error("no-matching-entities result must echo the attach rules")
			}
		})
	}
}

func TestSubmit_TransportError(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	_, err := New(api).Submit(context.Background(), validEvent())
	if err == nil {
		t.Fatal("Submit() error = nil, want transport failure")
	}
	if IsValidationError(err) {
		t.Error("transport failure classified as validation error")
	}
}

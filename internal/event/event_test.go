package event

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestTag_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{
			name: "string form",
			in:   `"env:prod"`,
		},
		{
			name: "structured form",
			in:   `{"context":"CONTEXTLESS","key":"DeploymentGroup","value":"Production"}`,
		},
		{
			name: "structured form without value",
			in:   `{"context":"CONTEXTLESS","key":"owner"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tag Tag
			if err := json.Unmarshal([]byte(tt.in), &tag); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}

			out, err := json.Marshal(tag)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			if string(out) != tt.in {
				t.Errorf("round trip = %s, want %s", out, tt.in)
			}
		})
	}
}

func TestTag_UnmarshalInvalid(t *testing.T) {
	var tag Tag
	if err := json.Unmarshal([]byte(`42`), &tag); err == nil {
		t.Error("Unmarshal(42) should return error")
	}
}

func TestTag_String(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		want string
	}{
		{"string form", StringTag("env:prod"), "env:prod"},
		{"structured with context", Tag{Context: "CONTEXTLESS", Key: "stage", Value: "prod"}, "[CONTEXTLESS]stage:prod"},
		{"structured without context", Tag{Key: "stage", Value: "prod"}, "stage:prod"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tag.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttachRules_Empty(t *testing.T) {
	tests := []struct {
		name  string
		rules *AttachRules
		want  bool
	}{
		{"nil rules", nil, true},
		{"zero value", &AttachRules{}, true},
		{"entity ids only", &AttachRules{EntityIDs: []string{"SERVICE-1234"}}, false},
		{"tag rules only", &AttachRules{TagRule: []TagRule{{MeTypes: []string{"SERVICE"}}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rules.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvent_DefaultsAreSetIfAbsent(t *testing.T) {
	e := &Event{DeploymentName: "explicit-name"}

	e.DefaultEventType(TypeDeployment)
	e.DefaultDeploymentName("derived-name")
	e.DefaultDeploymentVersion("v42")
	e.DefaultDeploymentProject("my-pipeline")
	e.DefaultSourceLabel("CodePipeline")

	if e.EventType != TypeDeployment {
		t.Errorf("EventType = %q, want %q", e.EventType, TypeDeployment)
	}
	if e.DeploymentName != "explicit-name" {
		t.Errorf("DeploymentName = %q, explicit value must win over default", e.DeploymentName)
	}
	if e.DeploymentVersion != "v42" {
		t.Errorf("DeploymentVersion = %q, want v42", e.DeploymentVersion)
	}
	if e.DeploymentProject != "my-pipeline" {
		t.Errorf("DeploymentProject = %q, want my-pipeline", e.DeploymentProject)
	}
	if e.Source != "CodePipeline" {
		t.Errorf("Source = %q, want CodePipeline", e.Source)
	}

	// A second pass with different values must change nothing.
	e.DefaultEventType(TypeAnnotation)
	e.DefaultDeploymentVersion("v43")
	if e.EventType != TypeDeployment || e.DeploymentVersion != "v42" {
		t.Error("Default* must not overwrite fields that are already set")
	}
}

func TestEvent_DefaultCustomProperties(t *testing.T) {
	derived := map[string]string{"PipelineName": "prod-pipeline"}

	t.Run("applied when absent", func(t *testing.T) {
		e := &Event{}
		e.DefaultCustomProperties(derived)
		if !reflect.DeepEqual(e.CustomProperties, derived) {
			t.Errorf("CustomProperties = %v, want %v", e.CustomProperties, derived)
		}
	})

	t.Run("no partial merge into supplied map", func(t *testing.T) {
		e := &Event{CustomProperties: map[string]string{"team": "platform"}}
		e.DefaultCustomProperties(derived)
		want := map[string]string{"team": "platform"}
		if !reflect.DeepEqual(e.CustomProperties, want) {
			t.Errorf("CustomProperties = %v, want supplied map untouched %v", e.CustomProperties, want)
		}
	})

	t.Run("supplied empty map counts as supplied", func(t *testing.T) {
		e := &Event{CustomProperties: map[string]string{}}
		e.DefaultCustomProperties(derived)
		if len(e.CustomProperties) != 0 {
			t.Errorf("CustomProperties = %v, want empty caller map kept", e.CustomProperties)
		}
	})
}

func TestEvent_AppendTagRules(t *testing.T) {
	ruleA := TagRule{MeTypes: []string{"SERVICE"}, Tags: []Tag{StringTag("env:staging")}}
	ruleB := TagRule{MeTypes: []string{"HOST"}, Tags: []Tag{StringTag("env:prod")}}

	t.Run("creates structure when absent", func(t *testing.T) {
		e := &Event{}
		e.AppendTagRules([]TagRule{ruleA})
		if e.AttachRules == nil || len(e.AttachRules.TagRule) != 1 {
			t.Fatalf("AttachRules = %+v, want one tag rule", e.AttachRules)
		}
	})

	t.Run("concatenates, never replaces", func(t *testing.T) {
		e := &Event{AttachRules: &AttachRules{TagRule: []TagRule{ruleA}}}
		e.AppendTagRules([]TagRule{ruleB})
		if len(e.AttachRules.TagRule) != 2 {
			t.Fatalf("TagRule count = %d, want 2", len(e.AttachRules.TagRule))
		}
		if !reflect.DeepEqual(e.AttachRules.TagRule[0], ruleA) {
			t.Error("existing tag rule was replaced")
		}
	})

	t.Run("no rules is a no-op", func(t *testing.T) {
		e := &Event{}
		e.AppendTagRules(nil)
		if e.AttachRules != nil {
			t.Errorf("AttachRules = %+v, want nil", e.AttachRules)
		}
	})
}

func TestParse_RoundTrip(t *testing.T) {
	in := `{"eventType":"CUSTOM_DEPLOYMENT","attachRules":{"tagRule":[{"meTypes":["SERVICE"],"tags":["env:prod"]}]},"deploymentName":"svc-a"}`

	e, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	out, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != in {
		t.Errorf("round trip = %s, want %s", out, in)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte(`{"eventType":`)); err == nil {
		t.Error("Parse() should fail on malformed JSON")
	}
}

func TestNewPayload(t *testing.T) {
	now := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	wantTS := strconv.FormatInt(now.UnixMilli(), 10)

	e := &Event{
		EventType:      TypeDeployment,
		DeploymentName: "svc-a",
		AttachRules:    &AttachRules{TagRule: []TagRule{{MeTypes: []string{"SERVICE"}, Tags: []Tag{StringTag("env:prod")}}}},
		APIToken:       "secret-token",
		TenantURL:      "https://tenant.example.com",
	}

	p := NewPayload(e, now)

	if p.Start != wantTS || p.End != wantTS {
		t.Errorf("Start/End = %q/%q, want both %q", p.Start, p.End, wantTS)
	}
	if p.Source != DefaultSource {
		t.Errorf("Source = %q, want fallback %q", p.Source, DefaultSource)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	body := string(raw)

	for _, want := range []string{`"start"`, `"end"`, `"eventType"`, `"attachRules"`, `"deploymentName"`} {
		if !strings.Contains(body, want) {
			t.Errorf("payload missing %s: %s", want, body)
		}
	}
	for _, unwanted := range []string{`"annotationType"`, `"dtApiToken"`, `"dtTenantUrl"`} {
		if strings.Contains(body, unwanted) {
			t.Errorf("payload must not carry %s: %s", unwanted, body)
		}
	}
}

func TestNewPayload_KeepsExplicitSource(t *testing.T) {
	e := &Event{EventType: TypeAnnotation, AnnotationType: "deploy", Source: "CodePipeline"}
	p := NewPayload(e, time.Now())
	if p.Source != "CodePipeline" {
		t.Errorf("Source = %q, want explicit CodePipeline", p.Source)
	}
}

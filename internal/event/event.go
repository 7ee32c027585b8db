// Package event defines the canonical monitoring event record and the wire
// payload submitted to the Dynatrace events API.
//
// A record is built incrementally: explicit input first, then defaults derived
// from pipeline job context, then process-wide configuration. Every Default*
// method sets its field only when the field is still unset, which keeps the
// precedence (explicit > job-context > global) auditable field by field.
package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event types accepted by the events API. Other eventType values are passed
// through untouched and rejected server-side if the API does not know them.
const (
	TypeDeployment = "CUSTOM_DEPLOYMENT"
	TypeAnnotation = "CUSTOM_ANNOTATION"
)

// DefaultSource is the provenance label stamped on the wire payload when the
// record does not carry its own source.
const DefaultSource = "AWSDevOpsTutorial"

// Tag is a single tag inside a tag rule. The API accepts two forms: a plain
// string ("env:prod") or a structured context/key/value object. The form a
// tag arrived in is preserved through marshalling so records round-trip
// exactly.
type Tag struct {
	Context string `json:"context,omitempty"`
	Key     string `json:"key,omitempty"`
	Value   string `json:"value,omitempty"`

	// text holds the original string form; empty for structured tags.
	text string
}

// StringTag builds a tag in plain string form.
func StringTag(s string) Tag {
	return Tag{text: s}
}

// IsString reports whether the tag is in plain string form.
func (t Tag) IsString() bool {
	return t.text != ""
}

// String renders the tag for logs and failure messages.
func (t Tag) String() string {
	if t.text != "" {
		return t.text
	}
	if t.Context != "" {
		return fmt.Sprintf("[%s]%s:%s", t.Context, t.Key, t.Value)
	}
	return fmt.Sprintf("%s:%s", t.Key, t.Value)
}

// UnmarshalJSON accepts both the string and the structured tag form.
func (t *Tag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = Tag{text: s}
		return nil
	}

	type structured Tag
	var st structured
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("tag must be a string or a context/key/value object: %w", err)
	}
	*t = Tag(st)
	return nil
}

// MarshalJSON emits the tag in the form it was built in.
func (t Tag) MarshalJSON() ([]byte, error) {
	if t.text != "" {
		return json.Marshal(t.text)
	}
	type structured Tag
	return json.Marshal(structured(t))
}

// TagRule matches monitored entities by entity type and tags.
type TagRule struct {
	MeTypes []string `json:"meTypes,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

// AttachRules describes which monitored entities an event attaches to, either
// by explicit entity identifiers or by tag rules. A record must end up with a
// non-empty set before submission.
type AttachRules struct {
	EntityIDs []string  `json:"entityIds,omitempty"`
	TagRule   []TagRule `json:"tagRule,omitempty"`
}

// Empty reports whether the rules match nothing at all.
func (r *AttachRules) Empty() bool {
	return r == nil || (len(r.EntityIDs) == 0 && len(r.TagRule) == 0)
}

// Event is the canonical record. It is constructed, enriched, submitted and
// discarded within one invocation; there is no persisted lifecycle.
//
// APIToken and TenantURL are authentication/destination coordinates. They may
// arrive on a direct call or be filled from process configuration, and are
// never serialized into the wire payload.
type Event struct {
	EventType             string            `json:"eventType,omitempty"`
	AttachRules           *AttachRules      `json:"attachRules,omitempty"`
	DeploymentName        string            `json:"deploymentName,omitempty"`
	DeploymentVersion     string            `json:"deploymentVersion,omitempty"`
	DeploymentProject     string            `json:"deploymentProject,omitempty"`
	AnnotationType        string            `json:"annotationType,omitempty"`
	AnnotationDescription string            `json:"annotationDescription,omitempty"`
	Source                string            `json:"source,omitempty"`
	CustomProperties      map[string]string `json:"customProperties,omitempty"`
	APIToken              string            `json:"dtApiToken,omitempty"`
	TenantURL             string            `json:"dtTenantUrl,omitempty"`
}

// Parse decodes a partial record from raw JSON.
func Parse(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse event record: %w", err)
	}
	return &e, nil
}

// DefaultEventType sets the event type unless one was given explicitly.
func (e *Event) DefaultEventType(v string) {
	if e.EventType == "" {
		e.EventType = v
	}
}

// DefaultDeploymentName sets the deployment name unless already set.
func (e *Event) DefaultDeploymentName(v string) {
	if e.DeploymentName == "" {
		e.DeploymentName = v
	}
}

// DefaultDeploymentVersion sets the deployment version unless already set.
func (e *Event) DefaultDeploymentVersion(v string) {
	if e.DeploymentVersion == "" {
		e.DeploymentVersion = v
	}
}

// DefaultDeploymentProject sets the deployment project unless already set.
func (e *Event) DefaultDeploymentProject(v string) {
	if e.DeploymentProject == "" {
		e.DeploymentProject = v
	}
}

// DefaultAnnotationType sets the annotation type unless already set.
func (e *Event) DefaultAnnotationType(v string) {
	if e.AnnotationType == "" {
		e.AnnotationType = v
	}
}

// DefaultAnnotationDescription sets the annotation description unless already set.
func (e *Event) DefaultAnnotationDescription(v string) {
	if e.AnnotationDescription == "" {
		e.AnnotationDescription = v
	}
}

// DefaultSourceLabel sets the source unless already set.
func (e *Event) DefaultSourceLabel(v string) {
	if e.Source == "" {
		e.Source = v
	}
}

// DefaultCustomProperties installs the property map only when the caller
// supplied no customProperties at all. A caller-supplied map, even an empty
// one, is never partially merged.
func (e *Event) DefaultCustomProperties(props map[string]string) {
	if e.CustomProperties == nil {
		e.CustomProperties = props
	}
}

// DefaultAPIToken sets the API token unless already set.
func (e *Event) DefaultAPIToken(v string) {
	if e.APIToken == "" {
		e.APIToken = v
	}
}

// DefaultTenantURL sets the tenant URL unless already set.
func (e *Event) DefaultTenantURL(v string) {
	if e.TenantURL == "" {
		e.TenantURL = v
	}
}

// AppendTagRules concatenates rules onto the record's attach rules, creating
// the structure when absent. Existing rules are never replaced.
func (e *Event) AppendTagRules(rules []TagRule) {
	if len(rules) == 0 {
		return
	}
	if e.AttachRules == nil {
		e.AttachRules = &AttachRules{}
	}
	e.AttachRules.TagRule = append(e.AttachRules.TagRule, rules...)
}

// Payload is the fixed-shape wire object POSTed to the events API. Start and
// end are both the submission instant: events pushed here are points in time,
// not ranges.
type Payload struct {
	Start                 string            `json:"start"`
	End                   string            `json:"end"`
	Source                string            `json:"source"`
	EventType             string            `json:"eventType"`
	AttachRules           *AttachRules      `json:"attachRules"`
	DeploymentName        string            `json:"deploymentName,omitempty"`
	DeploymentVersion     string            `json:"deploymentVersion,omitempty"`
	DeploymentProject     string            `json:"deploymentProject,omitempty"`
	AnnotationType        string            `json:"annotationType,omitempty"`
	AnnotationDescription string            `json:"annotationDescription,omitempty"`
	CustomProperties      map[string]string `json:"customProperties,omitempty"`
}

// NewPayload builds the wire payload for a validated record at the given
// submission instant. Timestamps are epoch milliseconds, string encoded.
func NewPayload(e *Event, now time.Time) *Payload {
	ts := strconv.FormatInt(now.UnixMilli(), 10)

	source := e.Source
	if source == "" {
		source = DefaultSource
	}

	return &Payload{
		Start:                 ts,
		End:                   ts,
		Source:                source,
		EventType:             e.EventType,
		AttachRules:           e.AttachRules,
		DeploymentName:        e.DeploymentName,
		DeploymentVersion:     e.DeploymentVersion,
		DeploymentProject:     e.DeploymentProject,
		AnnotationType:        e.AnnotationType,
		AnnotationDescription: e.AnnotationDescription,
		CustomProperties:      e.CustomProperties,
	}
}

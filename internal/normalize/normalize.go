// Package normalize turns classified invocations into canonical event records.
//
// Direct calls already carry the partial record, so only decoding happens
// here. Pipeline jobs go through the full default-filling sequence: user
// parameters, job context, event-type dependent field defaults, contextual
// properties, and tag rules extracted from an input artifact. Every default
// respects values the caller set explicitly.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/codepipeline"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/event"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/invocation"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/monspec"
)

// SourceCodePipeline is the provenance label stamped on events that originate
// from a pipeline job.
const SourceCodePipeline = "CodePipeline"

// Custom-property keys for the job-context default.
const (
	propPipelineName    = "PipelineName"
	propPipelineStage   = "PipelineStage"
	propPipelineAction  = "PipelineAction"
	propDeploymentGroup = "CodeDeploy.DeploymentGroup"
	propApplication     = "CodeDeploy.Application"
	propDeploymentID    = "CodeDeploy.DeploymentId"
)

// JobDetailsFetcher looks up the pipeline context behind a job.
type JobDetailsFetcher interface {
	GetJobDetails(ctx context.Context, jobID string) (*codepipeline.JobContext, error)
}

// ArtifactDownloader fetches input-artifact content, optionally from an
// overriding remote location.
type ArtifactDownloader interface {
	DownloadArtifact(ctx context.Context, artifact *invocation.Artifact, creds *invocation.ArtifactCredentials, overrideURL string) (string, error)
}

// Params is the parsed form of a job's user-parameter string.
type Params struct {
	// Event is set when the string was a structured record ("{...}").
	Event *event.Event

	// Environment scopes tag-rule extraction from the specification file.
	Environment string

	// Comment is free text that becomes the annotation description or the
	// deployment name. Empty when a remote spec location was given instead.
	Comment string

	// RemoteSpecURL overrides the artifact location for the specification
	// download.
	RemoteSpecURL string
}

// ParseUserParameters interprets a job's user-parameter string. A string
// starting with "{" is the partial event record itself. Anything else is a
// comma-separated list: first segment the environment name, second segment
// either a remote spec-file URL (scheme-prefixed) or a free-text comment.
// With no second segment the whole string doubles as the comment.
func ParseUserParameters(raw string) (*Params, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		e, err := event.Parse([]byte(trimmed))
		if err != nil {
			return nil, fmt.Errorf("failed to parse user parameters: %w", err)
		}
		return &Params{Event: e}, nil
	}

	p := &Params{}
	segments := strings.SplitN(raw, ",", 2)
	p.Environment = strings.TrimSpace(segments[0])
	if len(segments) == 2 {
		second := strings.TrimSpace(segments[1])
		if isURL(second) {
			p.RemoteSpecURL = second
		} else {
			p.Comment = second
		}
	} else {
		p.Comment = raw
	}
	return p, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Normalizer builds canonical event records from classified invocations.
type Normalizer struct {
	jobs      JobDetailsFetcher
	downloads ArtifactDownloader
}

// New builds a normalizer over the orchestrator collaborators.
func New(jobs JobDetailsFetcher, downloads ArtifactDownloader) *Normalizer {
	return &Normalizer{jobs: jobs, downloads: downloads}
}

// FromDirectCall decodes the partial record a direct call carries. No
// enrichment happens here; global defaults apply at submission.
func (n *Normalizer) FromDirectCall(raw []byte) (*event.Event, error) {
	return event.Parse(raw)
}

// FromPipelineJob produces the canonical record for a pipeline job. Any
// lookup failure aborts the whole normalization; a partial record is never
// returned for submission.
func (n *Normalizer) FromPipelineJob(ctx context.Context, job *invocation.PipelineJob) (*event.Event, error) {
	params, err := ParseUserParameters(job.UserParameters)
	if err != nil {
		return nil, err
	}

	e := params.Event
	if e == nil {
		e = &event.Event{}
	}

	jc, err := n.jobs.GetJobDetails(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("job context lookup failed: %w", err)
	}

	if jc.CodeDeploy != nil {
		e.DefaultEventType(event.TypeDeployment)
	} else {
		e.DefaultEventType(event.TypeAnnotation)
	}

	switch e.EventType {
	case event.TypeAnnotation:
		e.DefaultAnnotationType(jc.PipelineName)
		if params.Comment != "" {
			e.DefaultAnnotationDescription(params.Comment)
		}
	case event.TypeDeployment:
		if params.Comment != "" {
			e.DefaultDeploymentName(params.Comment)
		} else {
			e.DefaultDeploymentName(jc.PipelineName)
		}
		if jc.CodeDeploy != nil && jc.CodeDeploy.DeploymentID != "" {
			e.DefaultDeploymentVersion(jc.CodeDeploy.DeploymentID)
		} else {
			e.DefaultDeploymentVersion(job.ID)
		}
		e.DefaultDeploymentProject(jc.PipelineName)
	}

	e.DefaultCustomProperties(contextProperties(jc))
	e.DefaultSourceLabel(SourceCodePipeline)

	if artifact := job.FirstArtifact(); artifact != nil {
		if err := n.appendArtifactRules(ctx, e, job, artifact, params); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// contextProperties builds the default custom-property map from the job
// context.
func contextProperties(jc *codepipeline.JobContext) map[string]string {
	props := map[string]string{
		propPipelineName:   jc.PipelineName,
		propPipelineStage:  jc.Stage,
		propPipelineAction: jc.Action,
	}
	if cd := jc.CodeDeploy; cd != nil {
		props[propDeploymentGroup] = cd.DeploymentGroup
		props[propApplication] = cd.Application
		props[propDeploymentID] = cd.DeploymentID
	}
	return props
}

// appendArtifactRules downloads the job's specification file, extracts the
// tag rules for the parsed environment, and appends them to the record's
// attach rules. Existing rules are concatenated with, never replaced.
func (n *Normalizer) appendArtifactRules(ctx context.Context, e *event.Event, job *invocation.PipelineJob, artifact *invocation.Artifact, params *Params) error {
	content, err := n.downloads.DownloadArtifact(ctx, artifact, job.Credentials, params.RemoteSpecURL)
	if err != nil {
		return fmt.Errorf("artifact download failed: %w", err)
	}

	doc, err := monspec.Parse([]byte(content))
	if err != nil {
		return err
	}

	rules := doc.TagRulesForEnvironment(params.Environment)
	slog.Debug("Extracted tag rules from specification",
		"environment", params.Environment,
		"rules", len(rules),
	)
	e.AppendTagRules(rules)
	return nil
}

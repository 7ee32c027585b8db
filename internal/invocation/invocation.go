// Package invocation classifies raw triggering payloads into one of the three
// invocation shapes the service accepts: a CodePipeline job, an SNS
// notification batch, or a direct call carrying the event record itself.
//
// Classification is pure: it inspects the payload and produces a tagged
// union, nothing else. Shapes that are none of the known ones fall through to
// direct-call treatment with the payload used as-is; that is the default
// branch, not an error.
package invocation

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names the invocation shape a payload was classified into.
type Kind string

const (
	KindPipelineJob  Kind = "pipeline-job"
	KindNotification Kind = "notification"
	KindDirectCall   Kind = "direct-call"
)

// StatusCreated is the deployment status a notification must carry to be
// acknowledged.
const StatusCreated = "CREATED"

// ErrEmptyPayload is returned when there is nothing to classify.
var ErrEmptyPayload = errors.New("triggering payload is empty")

// PipelineJob carries the parts of a CodePipeline job invocation the
// normalizer consumes.
type PipelineJob struct {
	ID             string
	UserParameters string
	InputArtifacts []Artifact
	Credentials    *ArtifactCredentials
}

// FirstArtifact returns the job's first input artifact, or nil when the job
// carries none.
func (j *PipelineJob) FirstArtifact() *Artifact {
	if j == nil || len(j.InputArtifacts) == 0 {
		return nil
	}
	return &j.InputArtifacts[0]
}

// Artifact is one input artifact reference on a pipeline job.
type Artifact struct {
	Name     string           `json:"name"`
	Location ArtifactLocation `json:"location"`
}

// ArtifactLocation points at the stored artifact object.
type ArtifactLocation struct {
	Type string      `json:"type"`
	S3   *S3Location `json:"s3Location"`
}

// S3Location names the bucket and key of an artifact object.
type S3Location struct {
	Bucket    string `json:"bucketName"`
	ObjectKey string `json:"objectKey"`
}

// ArtifactCredentials are the job-scoped credentials the orchestrator hands
// out for reading input artifacts.
type ArtifactCredentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

// Notification is the deployment-orchestrator status signal carried inside an
// SNS record. Only the first record of a batch is inspected.
type Notification struct {
	DeploymentID        string `json:"deploymentId"`
	Status              string `json:"status"`
	ApplicationName     string `json:"applicationName"`
	DeploymentGroupName string `json:"deploymentGroupName"`
	Region              string `json:"region"`
	CreateTime          string `json:"createTime"`
}

// IsCreated reports whether the notification is one this service
// acknowledges: a deployment id with CREATED status.
func (n *Notification) IsCreated() bool {
	return n != nil && n.DeploymentID != "" && n.Status == StatusCreated
}

// Invocation is the classified triggering payload. Exactly one of the
// shape-specific fields is populated, selected by Kind; Direct additionally
// holds the raw partial record for direct calls.
type Invocation struct {
	Kind Kind

	// Job is set for KindPipelineJob.
	Job *PipelineJob

	// Notification is set for KindNotification when the first record's
	// message parsed; RawMessage always holds the message text.
	Notification *Notification
	RawMessage   string

	// Direct is set for KindDirectCall: the partial event record, unwrapped
	// from an eventBody envelope when one was present.
	Direct json.RawMessage
}

// envelope covers the three top-level shapes in one probe.
type envelope struct {
	Job       *jobEnvelope    `json:"CodePipeline.job"`
	Records   []record        `json:"Records"`
	EventBody json.RawMessage `json:"eventBody"`
}

type jobEnvelope struct {
	ID   string  `json:"id"`
	Data jobData `json:"data"`
}

type jobData struct {
	ActionConfiguration struct {
		Configuration struct {
			UserParameters string `json:"UserParameters"`
		} `json:"configuration"`
	} `json:"actionConfiguration"`
	InputArtifacts      []Artifact           `json:"inputArtifacts"`
	ArtifactCredentials *ArtifactCredentials `json:"artifactCredentials"`
}

type record struct {
	Sns struct {
		Message string `json:"Message"`
	} `json:"Sns"`
}

// Classify inspects a raw triggering payload and returns its tagged shape.
// The only classification failure is a payload that is not valid JSON.
func Classify(payload []byte) (*Invocation, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("triggering payload is not valid JSON")
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		// Valid JSON that is not an object (an array, a bare string) gets
		// direct-call treatment with the payload as-is.
		return &Invocation{Kind: KindDirectCall, Direct: payload}, nil
	}

	switch {
	case env.Job != nil:
		return &Invocation{
			Kind: KindPipelineJob,
			Job: &PipelineJob{
				ID:             env.Job.ID,
				UserParameters: env.Job.Data.ActionConfiguration.Configuration.UserParameters,
				InputArtifacts: env.Job.Data.InputArtifacts,
				Credentials:    env.Job.Data.ArtifactCredentials,
			},
		}, nil

	case len(env.Records) > 0:
		inv := &Invocation{
			Kind:       KindNotification,
			RawMessage: env.Records[0].Sns.Message,
		}
		var n Notification
		if err := json.Unmarshal([]byte(inv.RawMessage), &n); err == nil {
			inv.Notification = &n
		}
		return inv, nil

	case env.EventBody != nil:
		return &Invocation{Kind: KindDirectCall, Direct: env.EventBody}, nil

	default:
		return &Invocation{Kind: KindDirectCall, Direct: payload}, nil
	}
}

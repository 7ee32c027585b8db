// Package codepipeline adapts the AWS CodePipeline and S3 APIs for the
// service: job-context lookup, job result reporting, and input-artifact
// download with the job-scoped credentials the orchestrator hands out.
package codepipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/invocation"
)

// Action configuration keys a CodeDeploy-backed job carries. Their presence
// is what marks a job context as deployment-orchestrated.
const (
	configKeyApplication     = "ApplicationName"
	configKeyDeploymentGroup = "DeploymentGroupName"
	configKeyDeploymentID    = "DeploymentId"
)

// CodeDeployContext is the optional deployment-orchestrator detail on a job
// context.
type CodeDeployContext struct {
	DeploymentID    string
	DeploymentGroup string
	Application     string
}

// JobContext is the pipeline metadata behind a job invocation. It is a
// read-only source of defaults for the normalizer and is never mutated.
type JobContext struct {
	PipelineName string
	Stage        string
	Action       string
	CodeDeploy   *CodeDeployContext
}

// Client talks to CodePipeline for job metadata and result reporting, and to
// S3 (or plain HTTP) for artifact downloads.
type Client struct {
	pipeline   *codepipeline.Client
	region     string
	httpClient *http.Client
}

// New builds the client from the ambient AWS configuration (environment,
// shared config, or instance role).
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		pipeline: codepipeline.NewFromConfig(cfg),
		region:   region,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// GetJobDetails fetches the pipeline context behind a job. The CodeDeploy
// detail is populated when the job's action configuration names a CodeDeploy
// application.
func (c *Client) GetJobDetails(ctx context.Context, jobID string) (*JobContext, error) {
	out, err := c.pipeline.GetJobDetails(ctx, &codepipeline.GetJobDetailsInput{
		JobId: aws.String(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get job details for job %s: %w", jobID, err)
	}

	jc := &JobContext{}
	data := out.JobDetails.Data
	if data == nil {
		return jc, nil
	}

	if pc := data.PipelineContext; pc != nil {
		jc.PipelineName = aws.ToString(pc.PipelineName)
		if pc.Stage != nil {
			jc.Stage = aws.ToString(pc.Stage.Name)
		}
		if pc.Action != nil {
			jc.Action = aws.ToString(pc.Action.Name)
		}
	}

	if ac := data.ActionConfiguration; ac != nil {
		if app, ok := ac.Configuration[configKeyApplication]; ok && app != "" {
			jc.CodeDeploy = &CodeDeployContext{
				Application:     app,
				DeploymentGroup: ac.Configuration[configKeyDeploymentGroup],
				DeploymentID:    ac.Configuration[configKeyDeploymentID],
			}
		}
	}

	return jc, nil
}

// PutJobSuccess reports the job as succeeded to the orchestrator.
func (c *Client) PutJobSuccess(ctx context.Context, jobID, message string) error {
	_, err := c.pipeline.PutJobSuccessResult(ctx, &codepipeline.PutJobSuccessResultInput{
		JobId: aws.String(jobID),
		ExecutionDetails: &types.ExecutionDetails{
			Summary: aws.String(message),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to report job %s success: %w", jobID, err)
	}
	slog.Info("Reported job success", "job_id", jobID)
	return nil
}

// PutJobFailure reports the job as failed to the orchestrator with a
// human-readable message.
func (c *Client) PutJobFailure(ctx context.Context, jobID, message string) error {
	_, err := c.pipeline.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(jobID),
		FailureDetails: &types.FailureDetails{
			Type:    types.FailureTypeJobFailed,
			Message: aws.String(message),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to report job %s failure: %w", jobID, err)
	}
	slog.Info("Reported job failure", "job_id", jobID, "message", message)
	return nil
}

// DownloadArtifact fetches the content behind an input artifact. A non-empty
// overrideURL wins over the artifact's own location and is fetched with a
// plain HTTP GET; otherwise the artifact's S3 object is read with the
// job-scoped credentials.
func (c *Client) DownloadArtifact(ctx context.Context, artifact *invocation.Artifact, creds *invocation.ArtifactCredentials, overrideURL string) (string, error) {
	if overrideURL != "" {
		return c.downloadHTTP(ctx, overrideURL)
	}
	if artifact == nil || artifact.Location.S3 == nil {
		return "", fmt.Errorf("artifact carries no downloadable location")
	}
	return c.downloadS3(ctx, artifact.Location.S3, creds)
}

func (c *Client) downloadHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download of %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read download of %s: %w", url, err)
	}

	slog.Debug("Downloaded remote specification file", "url", url, "bytes", len(body))
	return string(body), nil
}

func (c *Client) downloadS3(ctx context.Context, loc *invocation.S3Location, creds *invocation.ArtifactCredentials) (string, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(c.region)}
	if creds != nil {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config for artifact download: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.ObjectKey),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download s3://%s/%s: %w", loc.Bucket, loc.ObjectKey, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read s3://%s/%s: %w", loc.Bucket, loc.ObjectKey, err)
	}

	slog.Debug("Downloaded input artifact", "bucket", loc.Bucket, "key", loc.ObjectKey, "bytes", len(body))
	return string(body), nil
}

package normalize

import (
	"context"
	"errors"

	"github.com/ragunathv/AWSDevOpsTutorial/internal/codepipeline"
	"github.com/ragunathv/AWSDevOpsTutorial/internal/invocation"
)

// FakeJobAPI is a test fake for JobDetailsFetcher.
type FakeJobAPI struct {
	Context *codepipeline.JobContext
	Err     error
	Calls   int
}

func (f *FakeJobAPI) GetJobDetails(_ context.Context, jobID string) (*codepipeline.JobContext, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Context, nil
}

// FakeDownloader is a test fake for ArtifactDownloader.
type FakeDownloader struct {
	Content     string
	Err         error
	Calls       int
	GotArtifact *invocation.Artifact
	GotCreds    *invocation.ArtifactCredentials
	GotOverride string
}

func (f *FakeDownloader) DownloadArtifact(_ context.Context, artifact *invocation.Artifact, creds *invocation.ArtifactCredentials, overrideURL string) (string, error) {
	f.Calls++
	f.GotArtifact = artifact
	f.GotCreds = creds
	f.GotOverride = overrideURL
	if f.Err != nil {
		return "", f.Err
	}
	return f.Content, nil
}

var errLookup = errors.New("job not found")

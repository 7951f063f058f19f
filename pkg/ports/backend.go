package ports

import (
	"context"

	"github.com/aretw0/sketchy/pkg/domain"
)

// UploadResult is the backend answer to an upload.
type UploadResult struct {
	Count     int
	SessionID string

	// ImageIDs are positionally aligned with the submitted files.
	ImageIDs []string
}

// ImproveRequest targets either the regeneration itself (FromOriginal) or the
// latest improvement link.
type ImproveRequest struct {
	TargetID     string
	FromOriginal bool
	Prompt       string
}

// Backend is the remote API driven by the workflow.
// Implementations issue exactly one request per call and never retry.
// Failures are *domain.Error values of kind RemoteFailure or TransportFailure.
type Backend interface {
	Upload(ctx context.Context, files []domain.FileHandle) (UploadResult, error)
	Analyze(ctx context.Context, imageID, provider string) (domain.Analysis, error)
	Regenerate(ctx context.Context, analysisID, prompt, provider string) (domain.Regeneration, error)
	Improve(ctx context.Context, req ImproveRequest) (domain.ChainLink, error)
}

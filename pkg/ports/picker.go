package ports

import (
	"context"

	"github.com/aretw0/sketchy/pkg/domain"
)

// ExpectedFile describes a stored upload entry awaiting its file.
type ExpectedFile struct {
	ID       string
	Name     string
	MIMEType string
}

// FilePicker asks the user to re-supply the files of a recovered session.
// Returning no files (and no error) means the user skipped the prompt.
type FilePicker interface {
	PickFiles(ctx context.Context, expected []ExpectedFile) ([]domain.FileHandle, error)
}

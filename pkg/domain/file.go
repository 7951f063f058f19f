package domain

import "io"

// FileHandle is a live reference to the raw bytes of a user-supplied image.
// It is owned by the runtime (an open file, a browser blob) and is never persisted.
type FileHandle interface {
	// Name is the display name used to match re-supplied files during recovery.
	Name() string

	// MIMEType is the content type used alongside Name for matching.
	MIMEType() string

	// Open returns a fresh reader over the raw bytes.
	Open() (io.ReadCloser, error)
}

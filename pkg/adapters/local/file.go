// Package local provides file handles backed by the local filesystem.
package local

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/sketchy/pkg/domain"
)

// File is a domain.FileHandle on a path. The MIME type is derived from the
// extension, like a browser does for a picked file, and sniffed from the
// content when the extension is unknown.
type File struct {
	path     string
	mimeType string
}

var _ domain.FileHandle = (*File)(nil)

// Open resolves path into a File. The file must exist and be a regular file.
func Open(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot use %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot use %s: is a directory", path)
	}

	mt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mt == "" {
		mt, err = sniff(path)
		if err != nil {
			return nil, err
		}
	}
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return &File{path: path, mimeType: mt}, nil
}

// OpenAll resolves every path, stopping at the first failure.
func OpenAll(paths []string) ([]domain.FileHandle, error) {
	out := make([]domain.FileHandle, 0, len(paths))
	for _, p := range paths {
		f, err := Open(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	return http.DetectContentType(head[:n]), nil
}

// Name returns the base name of the file.
func (f *File) Name() string {
	return filepath.Base(f.path)
}

// MIMEType returns the detected content type.
func (f *File) MIMEType() string {
	return f.mimeType
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Open returns a fresh reader on the file content.
func (f *File) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

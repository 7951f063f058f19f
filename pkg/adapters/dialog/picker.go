// Package dialog implements ports.FilePicker with the native file dialog.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/adapters/local"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/ncruces/zenity"
)

// ImagePatterns are the extensions offered by the dialog filter.
var ImagePatterns = []string{"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp"}

type selectFunc func(options ...zenity.Option) ([]string, error)

// Picker opens a multi-select file dialog listing the expected file names.
type Picker struct {
	title  string
	sel    selectFunc
	logger *slog.Logger
}

var _ ports.FilePicker = (*Picker)(nil)

// Option configures the Picker.
type Option func(*Picker)

// WithTitle overrides the dialog title.
func WithTitle(title string) Option {
	return func(p *Picker) {
		p.title = title
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Picker) {
		p.logger = logger
	}
}

// New creates a Picker backed by zenity.
func New(opts ...Option) *Picker {
	p := &Picker{
		title:  "Restore session",
		sel:    zenity.SelectFileMultiple,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PickFiles shows the dialog. Cancelling it skips recovery.
func (p *Picker) PickFiles(ctx context.Context, expected []ports.ExpectedFile) ([]domain.FileHandle, error) {
	names := make([]string, 0, len(expected))
	for _, e := range expected {
		names = append(names, e.Name)
	}

	paths, err := p.sel(
		zenity.Context(ctx),
		zenity.Title(fmt.Sprintf("%s: %s", p.title, strings.Join(names, ", "))),
		zenity.FileFilters{
			{Name: "Images", Patterns: ImagePatterns},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			p.logger.Info("File dialog canceled")
			return nil, nil
		}
		return nil, fmt.Errorf("file dialog failed: %w", err)
	}

	p.logger.Info("Files picked via native dialog", "count", len(paths))
	return local.OpenAll(paths)
}

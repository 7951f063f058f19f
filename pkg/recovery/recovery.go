// Package recovery rebuilds the workflow state after a cold start.
//
// Stored uploads carry no file handle, so the user is asked to re-supply the
// same files. Each stored entry is re-bound to the first supplied file whose
// name and MIME type are both equal to its own; entries left without a file
// are dropped. Analysis, prompt, regeneration and chain come back verbatim.
package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/persistence"
	"github.com/aretw0/sketchy/pkg/ports"
)

// Prompt is shown to the user before asking for the files again.
const Prompt = "To restore your session, please re-select the same files you uploaded previously."

// Recoverer drives the recovery of a persisted session.
type Recoverer struct {
	adapter *persistence.Adapter
	logger  *slog.Logger
}

// Option configures the Recoverer.
type Option func(*Recoverer)

// WithLogger configures a logger for the Recoverer.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recoverer) {
		r.logger = logger
	}
}

// New creates a Recoverer reading through the given adapter.
func New(adapter *persistence.Adapter, opts ...Option) *Recoverer {
	r := &Recoverer{
		adapter: adapter,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pending is a loaded record awaiting its files.
type Pending struct {
	record persistence.Record
}

// Report describes the outcome of a re-bind.
type Report struct {
	Matched []ports.ExpectedFile
	Dropped []ports.ExpectedFile
}

// Outcome is the result of Resume.
type Outcome struct {
	State  domain.State
	Report Report

	// Pending is set when the user skipped the file prompt. State then holds
	// the stored images without handles, and a later re-bind is still possible.
	Pending *Pending
}

// Start loads the stored record. It returns nil when there is nothing to
// recover: no record, an unreadable one, or one without uploaded images.
func (r *Recoverer) Start(ctx context.Context) (*Pending, error) {
	rec, err := r.adapter.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec == nil || len(rec.UploadedImages) == 0 {
		return nil, nil
	}
	r.logger.Debug("Found stored session", "images", len(rec.UploadedImages), "key", r.adapter.Key())
	return &Pending{record: *rec}, nil
}

// Resume runs the whole recovery: load, ask the picker for the files, re-bind.
func (r *Recoverer) Resume(ctx context.Context, picker ports.FilePicker) (Outcome, error) {
	pending, err := r.Start(ctx)
	if err != nil {
		return Outcome{State: domain.NewState()}, err
	}
	if pending == nil {
		return Outcome{State: domain.NewState()}, nil
	}

	files, err := picker.PickFiles(ctx, pending.Expected())
	if err != nil {
		return Outcome{State: domain.NewState()}, fmt.Errorf("failed to pick files: %w", err)
	}
	if len(files) == 0 {
		state, err := pending.Detached()
		if err != nil {
			return Outcome{State: domain.NewState()}, err
		}
		r.logger.Info("Session restore skipped; images have no files attached")
		return Outcome{State: state, Pending: pending}, nil
	}

	state, report, err := pending.Rebind(files)
	if err != nil {
		return Outcome{State: domain.NewState()}, err
	}
	r.logger.Info("Session restored", "matched", len(report.Matched), "dropped", len(report.Dropped))
	return Outcome{State: state, Report: report}, nil
}

// Expected lists the stored uploads in their original order.
func (p *Pending) Expected() []ports.ExpectedFile {
	entries := p.record.Expected()
	out := make([]ports.ExpectedFile, 0, len(entries))
	for _, e := range entries {
		out = append(out, ports.ExpectedFile{ID: e.ID, Name: e.Name, MIMEType: e.MIMEType})
	}
	return out
}

// Detached returns the stored state as is, without file handles.
func (p *Pending) Detached() (domain.State, error) {
	return p.record.State()
}

// Rebind matches the supplied files to the stored entries on (name, type).
// A file may satisfy several entries, matching the first one found for each.
func (p *Pending) Rebind(files []domain.FileHandle) (domain.State, Report, error) {
	handles, report := Match(p.Expected(), files)
	images := make([]domain.UploadedImageRef, 0, len(handles))
	for _, want := range report.Matched {
		images = append(images, domain.UploadedImageRef{
			ID:          want.ID,
			File:        handles[want.ID],
			DisplayName: want.Name,
			MIMEType:    want.MIMEType,
		})
	}

	state, err := p.record.StateWith(images)
	if err != nil {
		return domain.NewState(), Report{}, err
	}
	return state, report, nil
}

// Match pairs each expected entry with the first file of equal name and MIME
// type. The handles are keyed by image id, ready for State.ReattachFiles.
func Match(expected []ports.ExpectedFile, files []domain.FileHandle) (map[string]domain.FileHandle, Report) {
	var report Report
	handles := make(map[string]domain.FileHandle, len(expected))
	for _, want := range expected {
		f := firstMatch(files, want)
		if f == nil {
			report.Dropped = append(report.Dropped, want)
			continue
		}
		report.Matched = append(report.Matched, want)
		handles[want.ID] = f
	}
	return handles, report
}

func firstMatch(files []domain.FileHandle, want ports.ExpectedFile) domain.FileHandle {
	for _, f := range files {
		if f != nil && f.Name() == want.Name && f.MIMEType() == want.MIMEType {
			return f
		}
	}
	return nil
}

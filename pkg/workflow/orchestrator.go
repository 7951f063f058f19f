package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/persistence"
	"github.com/aretw0/sketchy/pkg/ports"
)

// Orchestrator sequences the workflow steps against a Backend.
// It is safe for concurrent use; the backend is never called while the state
// lock is held.
type Orchestrator struct {
	backend ports.Backend

	mu       sync.Mutex
	state    domain.State
	inFlight map[domain.Step]bool

	persist   *persistence.Adapter
	listeners []Listener
	providers Providers
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
}

// New creates an Orchestrator starting from an empty state.
func New(backend ports.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:  backend,
		state:    domain.NewState(),
		inFlight: make(map[domain.Step]bool),
		providers: Providers{
			Analyze:    DefaultAnalyzeProvider,
			Regenerate: DefaultRegenerateProvider,
		},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current state.
func (o *Orchestrator) State() domain.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Providers returns the providers in use.
func (o *Orchestrator) Providers() Providers {
	return o.providers
}

// Enabled reports whether a step can be triggered now: its predecessor is
// committed and no request for it is pending.
func (o *Orchestrator) Enabled(step domain.Step) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.inFlight[step] {
		return false
	}
	switch step {
	case domain.StepUpload:
		return true
	case domain.StepAnalyze:
		_, ok := o.state.Session().Selected()
		return ok
	case domain.StepRegenerate:
		_, ok := o.state.Analysis()
		return ok
	case domain.StepImprove:
		_, ok := o.state.Regeneration()
		return ok
	}
	return false
}

// Adopt replaces the state wholesale, e.g. after a session recovery.
// The adopted state is not persisted.
func (o *Orchestrator) Adopt(state domain.State) {
	o.mu.Lock()
	old := o.state
	o.state = state
	o.mu.Unlock()

	o.notify(state, domain.Diff(old, state))
}

// Reattach binds re-supplied files, keyed by image id, onto the detached
// images of the current state. Unlike Adopt it is a commit: everything
// committed since the state was adopted is kept and the result is persisted.
func (o *Orchestrator) Reattach(ctx context.Context, handles map[string]domain.FileHandle) error {
	return o.commit(ctx, func(s domain.State) (domain.State, error) {
		return s.ReattachFiles(handles), nil
	})
}

// Reset discards the whole workflow and the stored record.
func (o *Orchestrator) Reset(ctx context.Context) {
	o.mu.Lock()
	old := o.state
	o.state = old.Reset()
	next := o.state
	var err error
	if o.persist != nil {
		err = o.persist.Clear(ctx)
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn("Failed to clear stored workflow state", "error", err)
	}
	o.notify(next, domain.Diff(old, next))
}

// Upload sends the files as one batch. The returned ids replace the uploaded
// images of the session and the whole downstream pipeline is cleared.
func (o *Orchestrator) Upload(ctx context.Context, files []domain.FileHandle) (ports.UploadResult, error) {
	if len(files) == 0 {
		return ports.UploadResult{}, domain.InvalidInput("Select at least one image to upload.")
	}

	done, err := o.begin(ctx, domain.StepUpload)
	if err != nil {
		return ports.UploadResult{}, err
	}

	res, err := o.backend.Upload(ctx, files)
	if err != nil {
		err = stepError(domain.StepUpload, err)
		done(err)
		return ports.UploadResult{}, err
	}

	n := len(res.ImageIDs)
	if n != len(files) {
		o.logger.Warn("Upload returned a different number of ids", "files", len(files), "ids", n)
		n = min(n, len(files))
	}
	refs := make([]domain.UploadedImageRef, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, domain.UploadedImageRef{
			ID:          res.ImageIDs[i],
			File:        files[i],
			DisplayName: files[i].Name(),
			MIMEType:    files[i].MIMEType(),
		})
	}

	err = o.commit(ctx, func(s domain.State) (domain.State, error) {
		return s.RecordUpload(refs)
	})
	if err != nil && errors.Is(err, domain.ErrInvalidInput) {
		// The backend answered with an unusable id list.
		err = domain.RemoteFailure(domain.StepUpload.FailureMessage(), err)
	}
	done(err)
	if err != nil {
		return ports.UploadResult{}, err
	}
	return res, nil
}

// Select marks an uploaded image as the analysis target.
func (o *Orchestrator) Select(ctx context.Context, imageID string) error {
	return o.commit(ctx, func(s domain.State) (domain.State, error) {
		return s.SelectImage(imageID)
	})
}

// EditPrompt stores a local prompt override for the next regeneration.
func (o *Orchestrator) EditPrompt(ctx context.Context, text string) error {
	return o.commit(ctx, func(s domain.State) (domain.State, error) {
		return s.EditPrompt(text)
	})
}

// Analyze requests an analysis of the selected image.
func (o *Orchestrator) Analyze(ctx context.Context) (domain.Analysis, error) {
	current := o.State()
	selected, ok := current.Session().Selected()
	if !ok {
		return domain.Analysis{}, domain.PreconditionFailed("Select an image to analyze first.")
	}

	done, err := o.begin(ctx, domain.StepAnalyze)
	if err != nil {
		return domain.Analysis{}, err
	}

	analysis, err := o.backend.Analyze(ctx, selected.ID, o.providers.Analyze)
	if err != nil {
		err = stepError(domain.StepAnalyze, err)
		done(err)
		return domain.Analysis{}, err
	}

	// Committed against whatever is current now; a re-selection made while the
	// request was pending does not discard the result.
	err = o.commit(ctx, func(s domain.State) (domain.State, error) {
		return s.RecordAnalysis(analysis)
	})
	done(err)
	if err != nil {
		return domain.Analysis{}, err
	}
	return analysis, nil
}

// Regenerate requests an image from the analysis using prompt.
// The prompt becomes the stored prompt of the workflow.
func (o *Orchestrator) Regenerate(ctx context.Context, prompt string) (domain.Regeneration, error) {
	current := o.State()
	analysis, ok := current.Analysis()
	if !ok {
		return domain.Regeneration{}, domain.PreconditionFailed("Analyze an image before regenerating.")
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.Regeneration{}, domain.InvalidInput("Prompt cannot be empty.")
	}

	done, err := o.begin(ctx, domain.StepRegenerate)
	if err != nil {
		return domain.Regeneration{}, err
	}

	regen, err := o.backend.Regenerate(ctx, analysis.ID, prompt, o.providers.Regenerate)
	if err != nil {
		err = stepError(domain.StepRegenerate, err)
		done(err)
		return domain.Regeneration{}, err
	}
	if regen.Prompt == "" {
		regen.Prompt = prompt
	}

	err = o.commit(ctx, func(s domain.State) (domain.State, error) {
		if a, ok := s.Analysis(); !ok || a.ID != analysis.ID {
			return s, domain.PreconditionFailed("The analysis changed while regenerating; result discarded.")
		}
		next := s
		if prompt != analysis.PromptDescription || s.PromptOverride() != "" {
			var err error
			if next, err = s.EditPrompt(prompt); err != nil {
				return s, err
			}
		}
		return next.RecordRegeneration(regen)
	})
	done(err)
	if err != nil {
		return domain.Regeneration{}, err
	}
	return regen, nil
}

// Improve refines the current tip of the chain: the regeneration itself for
// the first link, the last link afterwards.
func (o *Orchestrator) Improve(ctx context.Context, prompt string) (domain.ChainLink, error) {
	current := o.State()
	tip, err := current.CurrentTip()
	if err != nil {
		return domain.ChainLink{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return domain.ChainLink{}, domain.InvalidInput("Improvement prompt cannot be empty.")
	}
	chain, _ := current.Chain()
	req := ports.ImproveRequest{
		TargetID:     tip,
		FromOriginal: len(chain.Links) == 0,
		Prompt:       prompt,
	}

	done, err := o.begin(ctx, domain.StepImprove)
	if err != nil {
		return domain.ChainLink{}, err
	}

	link, err := o.backend.Improve(ctx, req)
	if err != nil {
		err = stepError(domain.StepImprove, err)
		done(err)
		return domain.ChainLink{}, err
	}
	if link.Prompt == "" {
		link.Prompt = prompt
	}

	err = o.commit(ctx, func(s domain.State) (domain.State, error) {
		if now, err := s.CurrentTip(); err != nil || now != tip {
			return s, domain.PreconditionFailed("The image changed while improving; result discarded.")
		}
		return s.RecordImprovement(link)
	})
	done(err)
	if err != nil {
		return domain.ChainLink{}, err
	}
	return link, nil
}

// begin marks the step in flight. The returned func settles it.
func (o *Orchestrator) begin(ctx context.Context, step domain.Step) (func(error), error) {
	o.mu.Lock()
	if o.inFlight[step] {
		o.mu.Unlock()
		return nil, domain.InFlight(step)
	}
	o.inFlight[step] = true
	o.mu.Unlock()

	start := time.Now()
	if o.hooks.OnStepStart != nil {
		o.hooks.OnStepStart(ctx, &domain.StepEvent{
			EventBase: domain.EventBase{Timestamp: start, Type: domain.EventStepStart},
			Step:      step,
		})
	}
	o.logger.Debug("Step started", "step", step)

	return func(err error) {
		o.mu.Lock()
		delete(o.inFlight, step)
		o.mu.Unlock()

		elapsed := time.Since(start)
		if err != nil {
			o.logger.Warn("Step failed", "step", step, "duration", elapsed, "error", err)
		} else {
			o.logger.Info("Step completed", "step", step, "duration", elapsed)
		}
		if o.hooks.OnStepFinish != nil {
			o.hooks.OnStepFinish(ctx, &domain.StepEvent{
				EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventStepFinish},
				Step:      step,
				Duration:  elapsed,
				Err:       err,
			})
		}
	}, nil
}

// commit applies fn to the current state, persists and notifies.
// Persistence failures are logged; the commit stands.
func (o *Orchestrator) commit(ctx context.Context, fn func(domain.State) (domain.State, error)) error {
	o.mu.Lock()
	old := o.state
	next, err := fn(old)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.state = next
	if o.persist != nil {
		// Saved under the lock so the stored record follows commit order.
		if perr := o.persist.Persist(ctx, next); perr != nil {
			o.logger.Warn("Failed to persist workflow state", "error", perr)
		}
	}
	o.mu.Unlock()

	o.notify(next, domain.Diff(old, next))
	return nil
}

func (o *Orchestrator) notify(state domain.State, changes domain.Changes) {
	if !changes.Any() {
		return
	}
	for _, l := range o.listeners {
		l(state, changes)
	}
}

// stepError makes sure a backend failure is a *domain.Error carrying a
// user-facing message.
func stepError(step domain.Step, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		if de.Message == "" {
			return &domain.Error{Kind: de.Kind, Message: step.FailureMessage(), Err: err}
		}
		return err
	}
	return domain.TransportFailure(step.FailureMessage(), err)
}

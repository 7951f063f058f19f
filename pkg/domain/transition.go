package domain

import (
	"fmt"
	"strings"
)

// RecordUpload replaces the uploaded batch wholesale. A new batch invalidates
// the whole downstream pipeline: selection, analysis, prompt override,
// regeneration and chain are cleared.
func (s State) RecordUpload(images []UploadedImageRef) (State, error) {
	if len(images) == 0 {
		return s, InvalidInput("no images to upload")
	}
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img.ID == "" {
			return s, InvalidInput("uploaded image has no id")
		}
		if _, dup := seen[img.ID]; dup {
			return s, InvalidInput(fmt.Sprintf("duplicate image id %q", img.ID))
		}
		seen[img.ID] = struct{}{}
	}

	next := State{session: Session{Images: make([]UploadedImageRef, len(images))}}
	copy(next.session.Images, images)
	return next, nil
}

// SelectImage marks an uploaded image as the analysis target.
// Selecting is non-destructive: downstream results are kept.
func (s State) SelectImage(id string) (State, error) {
	if _, ok := s.session.Image(id); !ok {
		return s, NotFound(fmt.Sprintf("image %q was not uploaded in this session", id))
	}
	next := s
	next.session = s.session.clone()
	next.session.SelectedID = id
	return next, nil
}

// RecordAnalysis commits an analysis of the selected image and clears the
// regeneration and chain built on a previous analysis.
func (s State) RecordAnalysis(a Analysis) (State, error) {
	if s.session.SelectedID == "" {
		return s, PreconditionFailed("select an image before analyzing")
	}
	if a.ID == "" {
		return s, InvalidInput("analysis has no id")
	}
	next := State{session: s.session.clone(), analysis: &a}
	return next, nil
}

// EditPrompt stores a local override of the analysis prompt.
// The committed Analysis itself is immutable.
func (s State) EditPrompt(text string) (State, error) {
	if s.analysis == nil {
		return s, PreconditionFailed("analyze an image before editing its prompt")
	}
	if strings.TrimSpace(text) == "" {
		return s, InvalidInput("Prompt cannot be empty.")
	}
	next := s
	next.promptOverride = text
	return next, nil
}

// RecordRegeneration commits a regenerated image and starts a new, empty
// improvement chain rooted at it.
func (s State) RecordRegeneration(r Regeneration) (State, error) {
	if s.analysis == nil {
		return s, PreconditionFailed("analyze an image before regenerating")
	}
	if r.ID == "" {
		return s, InvalidInput("regeneration has no id")
	}
	next := s
	next.regeneration = &r
	next.chain = &ImprovementChain{OriginID: r.ID, Links: []ChainLink{}}
	return next, nil
}

// RecordImprovement appends a link to the improvement chain.
func (s State) RecordImprovement(link ChainLink) (State, error) {
	if s.regeneration == nil {
		return s, PreconditionFailed("regenerate an image before improving")
	}
	if link.ID == "" {
		return s, InvalidInput("improvement has no id")
	}
	chain := ImprovementChain{OriginID: s.regeneration.ID}
	if s.chain != nil {
		chain = s.chain.clone()
	}
	chain.Links = append(chain.Links, link)

	next := s
	next.chain = &chain
	return next, nil
}

// ReattachFiles binds live file handles, keyed by image id, onto images that
// have none. Detached images without a handle are dropped, and the selection
// is cleared when its image goes. Analysis, prompt, regeneration and chain
// are kept as they are.
func (s State) ReattachFiles(handles map[string]FileHandle) State {
	next := s
	next.session = Session{Images: make([]UploadedImageRef, 0, len(s.session.Images))}
	for _, img := range s.session.Images {
		if img.File == nil {
			f, ok := handles[img.ID]
			if !ok || f == nil {
				continue
			}
			img.File = f
		}
		next.session.Images = append(next.session.Images, img)
	}
	if _, ok := next.session.Image(s.session.SelectedID); ok {
		next.session.SelectedID = s.session.SelectedID
	}
	return next
}

// Reset returns an empty state. Kept as a method so callers holding a State
// can express "start over" the same way as the other transitions.
func (s State) Reset() State {
	return NewState()
}

// Snapshot holds the parts of a State as read back from storage.
type Snapshot struct {
	Session        Session
	Analysis       *Analysis
	PromptOverride string
	Regeneration   *Regeneration
	Chain          *ImprovementChain
}

// Restore rebuilds a State from persisted parts, validating the structural
// invariants. The analysis-selection binding is not re-checked: it only holds
// at the moment an analysis is committed.
func Restore(snap Snapshot) (State, error) {
	seen := make(map[string]struct{}, len(snap.Session.Images))
	for _, img := range snap.Session.Images {
		if img.ID == "" {
			return State{}, InvalidInput("stored image has no id")
		}
		if _, dup := seen[img.ID]; dup {
			return State{}, InvalidInput(fmt.Sprintf("duplicate stored image id %q", img.ID))
		}
		seen[img.ID] = struct{}{}
	}
	if id := snap.Session.SelectedID; id != "" {
		if _, ok := seen[id]; !ok {
			return State{}, InvalidInput(fmt.Sprintf("selected image %q is not part of the session", id))
		}
	}
	if snap.Regeneration != nil && snap.Analysis == nil {
		return State{}, InvalidInput("regeneration without analysis")
	}
	if snap.PromptOverride != "" && snap.Analysis == nil {
		return State{}, InvalidInput("prompt override without analysis")
	}
	if snap.Chain != nil {
		if snap.Regeneration == nil {
			return State{}, InvalidInput("improvement chain without regeneration")
		}
		if snap.Chain.OriginID != snap.Regeneration.ID {
			return State{}, InvalidInput(fmt.Sprintf("chain origin %q does not match regeneration %q",
				snap.Chain.OriginID, snap.Regeneration.ID))
		}
	}

	s := State{
		session:        snap.Session.clone(),
		promptOverride: snap.PromptOverride,
	}
	if snap.Analysis != nil {
		a := *snap.Analysis
		s.analysis = &a
	}
	if snap.Regeneration != nil {
		r := *snap.Regeneration
		s.regeneration = &r
		chain := ImprovementChain{OriginID: r.ID, Links: []ChainLink{}}
		if snap.Chain != nil {
			chain = snap.Chain.clone()
		}
		s.chain = &chain
	}
	return s, nil
}

// Snapshot exposes the parts of the state for persistence.
func (s State) Snapshot() Snapshot {
	snap := Snapshot{
		Session:        s.session.clone(),
		PromptOverride: s.promptOverride,
	}
	if s.analysis != nil {
		a := *s.analysis
		snap.Analysis = &a
	}
	if s.regeneration != nil {
		r := *s.regeneration
		snap.Regeneration = &r
	}
	if s.chain != nil {
		c := s.chain.clone()
		snap.Chain = &c
	}
	return snap
}

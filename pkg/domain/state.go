package domain

// UploadedImageRef is one image of an upload batch.
type UploadedImageRef struct {
	// ID is assigned by the backend at upload time and is unique within the session.
	ID string

	// File is the live handle on the raw bytes. It is nil after a cold start
	// until the user re-supplies the file.
	File FileHandle

	DisplayName string
	MIMEType    string
}

// Session is the set of images uploaded together plus the current selection.
type Session struct {
	Images []UploadedImageRef

	// SelectedID references an entry of Images, or is empty.
	SelectedID string
}

// Image returns the uploaded image with the given id.
func (s Session) Image(id string) (UploadedImageRef, bool) {
	for _, img := range s.Images {
		if img.ID == id {
			return img, true
		}
	}
	return UploadedImageRef{}, false
}

// Selected returns the currently selected image, if any.
func (s Session) Selected() (UploadedImageRef, bool) {
	if s.SelectedID == "" {
		return UploadedImageRef{}, false
	}
	return s.Image(s.SelectedID)
}

func (s Session) clone() Session {
	out := Session{SelectedID: s.SelectedID}
	if s.Images != nil {
		out.Images = make([]UploadedImageRef, len(s.Images))
		copy(out.Images, s.Images)
	}
	return out
}

// Analysis is the AI-derived description of a selected image.
type Analysis struct {
	ID                string
	PromptDescription string
}

// Regeneration is the image produced from an analysis prompt.
type Regeneration struct {
	ID        string
	ImageData []byte // PNG

	// Prompt is the (possibly user-edited) prompt the image was generated from.
	Prompt string
}

// ChainLink is one improvement step.
type ChainLink struct {
	ID        string
	ImageData []byte // PNG
	Prompt    string
}

// ImprovementChain is the ordered refinements applied to a regeneration.
// Each link's predecessor is the previous link, or the origin for the first one.
type ImprovementChain struct {
	OriginID string
	Links    []ChainLink
}

// Tip returns the id targeted by the next improvement.
func (c ImprovementChain) Tip() string {
	if n := len(c.Links); n > 0 {
		return c.Links[n-1].ID
	}
	return c.OriginID
}

func (c ImprovementChain) clone() ImprovementChain {
	out := ImprovementChain{OriginID: c.OriginID, Links: make([]ChainLink, len(c.Links))}
	copy(out.Links, c.Links)
	return out
}

// State is the aggregate root of the workflow.
// Its fields are unexported: every change goes through a transition method,
// each of which returns a new State and leaves the receiver untouched.
type State struct {
	session        Session
	analysis       *Analysis
	promptOverride string
	regeneration   *Regeneration
	chain          *ImprovementChain
}

// NewState returns the empty state of a fresh session.
func NewState() State {
	return State{}
}

// Session returns a copy of the session.
func (s State) Session() Session {
	return s.session.clone()
}

// Analysis returns the committed analysis.
func (s State) Analysis() (Analysis, bool) {
	if s.analysis == nil {
		return Analysis{}, false
	}
	return *s.analysis, true
}

// Prompt returns the prompt the next regeneration should use by default:
// the local override if the user edited it, else the analysis description.
func (s State) Prompt() string {
	if s.promptOverride != "" {
		return s.promptOverride
	}
	if s.analysis != nil {
		return s.analysis.PromptDescription
	}
	return ""
}

// PromptOverride returns the locally edited prompt, if any.
func (s State) PromptOverride() string {
	return s.promptOverride
}

// Regeneration returns the committed regeneration.
func (s State) Regeneration() (Regeneration, bool) {
	if s.regeneration == nil {
		return Regeneration{}, false
	}
	return *s.regeneration, true
}

// Chain returns a copy of the improvement chain.
func (s State) Chain() (ImprovementChain, bool) {
	if s.chain == nil {
		return ImprovementChain{}, false
	}
	return s.chain.clone(), true
}

// CurrentTip returns the id the next improvement targets: the last link,
// else the regeneration itself.
func (s State) CurrentTip() (string, error) {
	if s.regeneration == nil {
		return "", PreconditionFailed("no regenerated image to improve")
	}
	if s.chain == nil {
		return s.regeneration.ID, nil
	}
	return s.chain.Tip(), nil
}

// LatestImage returns the image bytes of the current tip.
func (s State) LatestImage() ([]byte, bool) {
	if s.regeneration == nil {
		return nil, false
	}
	if s.chain != nil {
		if n := len(s.chain.Links); n > 0 {
			return s.chain.Links[n-1].ImageData, true
		}
	}
	return s.regeneration.ImageData, true
}

// IsEmpty reports whether nothing has been uploaded or produced.
func (s State) IsEmpty() bool {
	return len(s.session.Images) == 0 && s.analysis == nil && s.regeneration == nil
}

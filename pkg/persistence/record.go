package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aretw0/sketchy/pkg/domain"
)

const pngDataURIPrefix = "data:image/png;base64,"

// ImageEntry is the persisted part of an uploaded image.
type ImageEntry struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"type"`
}

// AnalysisEntry mirrors domain.Analysis.
type AnalysisEntry struct {
	ID                string `json:"id"`
	PromptDescription string `json:"promptDescription"`
}

// ImageResult is a generated image: a regeneration or a chain link.
type ImageResult struct {
	ID        string `json:"id"`
	ImageData string `json:"imageData"` // data URI
	Prompt    string `json:"prompt,omitempty"`
}

// ChainEntry mirrors domain.ImprovementChain.
type ChainEntry struct {
	OriginID string        `json:"originId"`
	Links    []ImageResult `json:"links"`
}

// Record is the serialized workflow state.
type Record struct {
	UploadedImages  []ImageEntry   `json:"uploadedImages"`
	SelectedImageID string         `json:"selectedImageId,omitempty"`
	Analysis        *AnalysisEntry `json:"analysis,omitempty"`
	Prompt          string         `json:"prompt,omitempty"`
	Regeneration    *ImageResult   `json:"regeneration,omitempty"`
	Chain           *ChainEntry    `json:"chain,omitempty"`
}

// Snapshot produces a deep copy of the serializable parts of the state.
// File handles are dropped.
func Snapshot(s domain.State) Record {
	snap := s.Snapshot()

	rec := Record{
		UploadedImages:  make([]ImageEntry, 0, len(snap.Session.Images)),
		SelectedImageID: snap.Session.SelectedID,
		Prompt:          snap.PromptOverride,
	}
	for _, img := range snap.Session.Images {
		rec.UploadedImages = append(rec.UploadedImages, ImageEntry{
			ID:       img.ID,
			Name:     img.DisplayName,
			MIMEType: img.MIMEType,
		})
	}
	if snap.Analysis != nil {
		rec.Analysis = &AnalysisEntry{ID: snap.Analysis.ID, PromptDescription: snap.Analysis.PromptDescription}
	}
	if snap.Regeneration != nil {
		rec.Regeneration = &ImageResult{
			ID:        snap.Regeneration.ID,
			ImageData: EncodeDataURI(snap.Regeneration.ImageData),
			Prompt:    snap.Regeneration.Prompt,
		}
	}
	if snap.Chain != nil {
		chain := &ChainEntry{OriginID: snap.Chain.OriginID, Links: make([]ImageResult, 0, len(snap.Chain.Links))}
		for _, l := range snap.Chain.Links {
			chain.Links = append(chain.Links, ImageResult{ID: l.ID, ImageData: EncodeDataURI(l.ImageData), Prompt: l.Prompt})
		}
		rec.Chain = chain
	}
	return rec
}

// Expected lists the stored uploads in their original order.
func (r Record) Expected() []ImageEntry {
	out := make([]ImageEntry, len(r.UploadedImages))
	copy(out, r.UploadedImages)
	return out
}

// State rebuilds a domain.State from the record. Uploaded images come back
// without file handles.
func (r Record) State() (domain.State, error) {
	images := make([]domain.UploadedImageRef, 0, len(r.UploadedImages))
	for _, e := range r.UploadedImages {
		images = append(images, domain.UploadedImageRef{ID: e.ID, DisplayName: e.Name, MIMEType: e.MIMEType})
	}
	return r.restore(images, r.SelectedImageID)
}

// StateWith rebuilds the state using the given images in place of the stored
// ones. The selection is kept only if it is among them.
func (r Record) StateWith(images []domain.UploadedImageRef) (domain.State, error) {
	selected := ""
	for _, img := range images {
		if img.ID == r.SelectedImageID {
			selected = img.ID
			break
		}
	}
	return r.restore(images, selected)
}

func (r Record) restore(images []domain.UploadedImageRef, selected string) (domain.State, error) {
	snap := domain.Snapshot{
		Session:        domain.Session{Images: images, SelectedID: selected},
		PromptOverride: r.Prompt,
	}
	if r.Analysis != nil {
		snap.Analysis = &domain.Analysis{ID: r.Analysis.ID, PromptDescription: r.Analysis.PromptDescription}
	}
	if r.Regeneration != nil {
		data, err := DecodeDataURI(r.Regeneration.ImageData)
		if err != nil {
			return domain.State{}, fmt.Errorf("regeneration %q: %w", r.Regeneration.ID, err)
		}
		snap.Regeneration = &domain.Regeneration{ID: r.Regeneration.ID, ImageData: data, Prompt: r.Regeneration.Prompt}
	}
	if r.Chain != nil {
		chain := &domain.ImprovementChain{OriginID: r.Chain.OriginID, Links: make([]domain.ChainLink, 0, len(r.Chain.Links))}
		for _, l := range r.Chain.Links {
			data, err := DecodeDataURI(l.ImageData)
			if err != nil {
				return domain.State{}, fmt.Errorf("chain link %q: %w", l.ID, err)
			}
			chain.Links = append(chain.Links, domain.ChainLink{ID: l.ID, ImageData: data, Prompt: l.Prompt})
		}
		snap.Chain = chain
	}
	return domain.Restore(snap)
}

// EncodeDataURI embeds PNG bytes in a data URI.
func EncodeDataURI(png []byte) string {
	if len(png) == 0 {
		return ""
	}
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(png)
}

// DecodeDataURI accepts a data URI of any image type, or bare base64 as the
// backend returns it.
func DecodeDataURI(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	payload := s
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 || !strings.HasSuffix(s[:comma], ";base64") {
			return nil, fmt.Errorf("unsupported data URI")
		}
		payload = s[comma+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid image data: %w", err)
	}
	return data, nil
}

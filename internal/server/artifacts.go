package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/sketchy/pkg/ports"
)

// Key prefixes of the artifact store.
const (
	kindImage       = "image"
	kindAnalysis    = "analysis"
	kindRegenerated = "regenerated"
	kindImproved    = "improved"
	kindSession     = "session"
)

var errArtifactNotFound = errors.New("artifact not found")

// ImageUpload is one uploaded (and possibly resized) image.
type ImageUpload struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int       `json:"size"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Data        []byte    `json:"data"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Color is a palette entry of an analysis.
type Color struct {
	Hex        string   `json:"hex"`
	RGB        [3]uint8 `json:"rgb"`
	Percentage float64  `json:"percentage"`
}

// GlobalAttributes describes the image as a whole.
type GlobalAttributes struct {
	Style          string  `json:"style"`
	Mood           string  `json:"mood"`
	Lighting       string  `json:"lighting"`
	Perspective    string  `json:"perspective"`
	DominantColors []Color `json:"dominant_colors"`
}

// AnalysisMetadata records how an analysis was produced.
type AnalysisMetadata struct {
	ProcessingTimeMS int64   `json:"processing_time_ms"`
	ModelUsed        string  `json:"model_used"`
	ConfidenceScore  float64 `json:"confidence_score"`
}

// ImageAnalysis is the stored result of /analyze.
type ImageAnalysis struct {
	ID                string           `json:"id"`
	ImageID           string           `json:"image_id"`
	LLMProvider       string           `json:"llm_provider"`
	GlobalAttributes  GlobalAttributes `json:"global_attributes"`
	PromptDescription string           `json:"prompt_description"`
	Metadata          AnalysisMetadata `json:"metadata"`
	CreatedAt         time.Time        `json:"created_at"`
}

// RegeneratedImage is the stored result of /regenerate.
type RegeneratedImage struct {
	ID         string    `json:"id"`
	AnalysisID string    `json:"analysis_id"`
	Provider   string    `json:"provider"`
	PromptUsed string    `json:"prompt_used"`
	Data       []byte    `json:"data"`
	CreatedAt  time.Time `json:"created_at"`
}

// ImprovedImage is one link of an improvement chain. RegeneratedImageID
// always points back to the chain origin.
type ImprovedImage struct {
	ID                 string    `json:"id"`
	RegeneratedImageID string    `json:"regenerated_image_id"`
	ParentID           string    `json:"parent_id"`
	Prompt             string    `json:"prompt"`
	Data               []byte    `json:"data"`
	CreatedAt          time.Time `json:"created_at"`
}

// UploadSession groups the images of one upload request.
type UploadSession struct {
	ID        string    `json:"id"`
	ImageIDs  []string  `json:"image_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// artifacts is a typed view on the RecordStore.
type artifacts struct {
	store ports.RecordStore
}

func artifactKey(kind, id string) string {
	return kind + ":" + id
}

func (a artifacts) put(ctx context.Context, kind, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	if err := a.store.Save(ctx, artifactKey(kind, id), data); err != nil {
		return fmt.Errorf("failed to store %s %s: %w", kind, id, err)
	}
	return nil
}

func (a artifacts) get(ctx context.Context, kind, id string, v any) error {
	data, err := a.store.Load(ctx, artifactKey(kind, id))
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			return fmt.Errorf("%s %s: %w", kind, id, errArtifactNotFound)
		}
		return fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return nil
}

// sessions lists upload sessions still present in the store.
func (a artifacts) sessions(ctx context.Context) ([]UploadSession, error) {
	keys, err := a.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	out := []UploadSession{}
	prefix := kindSession + ":"
	for _, k := range keys {
		if len(k) <= len(prefix) || k[:len(prefix)] != prefix {
			continue
		}
		var s UploadSession
		if err := a.get(ctx, kindSession, k[len(prefix):], &s); err != nil {
			// Expired between List and Load.
			if errors.Is(err, errArtifactNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

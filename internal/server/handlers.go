package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

const (
	errValidation      = "Validation error"
	errImageProcessing = "Image processing error"
	errInvalidProvider = "Invalid provider"
	errNotFound        = "Not found"
	errAIService       = "AI service error"
	errDatabase        = "Database error"
)

type imageResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type regenerateBody struct {
	Prompt   *string `json:"prompt"`
	Provider string  `json:"provider"`
}

type improveBody struct {
	Prompt string `json:"prompt"`
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.limits.MaxUploadBytes)
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, errValidation, "expected a multipart/form-data body")
		return
	}

	sess := UploadSession{ID: s.newID(), ImageIDs: []string{}, CreatedAt: s.now().UTC()}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, errValidation, fmt.Sprintf("invalid multipart body: %v", err))
			return
		}
		if part.FormName() != "images" {
			continue
		}
		if part.FileName() == "" {
			writeError(w, http.StatusBadRequest, errValidation, "No filename provided")
			return
		}

		raw, err := io.ReadAll(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, errValidation, fmt.Sprintf("failed to read %s: %v", part.FileName(), err))
			return
		}
		data, mimeType, size, err := processUpload(raw, s.limits.MaxDimension, s.limits.MaxUploadDimension)
		if err != nil {
			writeError(w, http.StatusBadRequest, errImageProcessing, err.Error())
			return
		}
		// Untouched uploads keep their declared image type.
		if ct := part.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") && len(data) == len(raw) {
			mimeType = ct
		}

		img := ImageUpload{
			ID:          s.newID(),
			SessionID:   sess.ID,
			Filename:    part.FileName(),
			ContentType: mimeType,
			Size:        len(data),
			Width:       size.X,
			Height:      size.Y,
			Data:        data,
			UploadedAt:  s.now().UTC(),
		}
		if err := s.artifacts.put(r.Context(), kindImage, img.ID, img); err != nil {
			s.storeFailed(w, err)
			return
		}
		s.stored(kindImage)
		sess.ImageIDs = append(sess.ImageIDs, img.ID)
	}

	if len(sess.ImageIDs) == 0 {
		writeError(w, http.StatusBadRequest, errValidation, "No images provided")
		return
	}
	if err := s.artifacts.put(r.Context(), kindSession, sess.ID, sess); err != nil {
		s.storeFailed(w, err)
		return
	}

	s.logger.Info("Images uploaded", "session_id", sess.ID, "count", len(sess.ImageIDs))
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id":      sess.ID,
		"uploaded_images": sess.ImageIDs,
		"count":           len(sess.ImageIDs),
	})
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		provider = "openai"
	}
	if !analyzeProviders[provider] {
		writeError(w, http.StatusBadRequest, errInvalidProvider, fmt.Sprintf("Invalid provider: %s", provider))
		return
	}

	var img ImageUpload
	if !s.load(w, r, kindImage, chi.URLParam(r, "imageID"), &img) {
		return
	}

	analysis, err := s.provider.Analyze(r.Context(), &img, provider)
	if err != nil {
		s.providerFailed(w, err)
		return
	}
	analysis.ID = s.newID()
	analysis.ImageID = img.ID
	analysis.CreatedAt = s.now().UTC()

	if err := s.artifacts.put(r.Context(), kindAnalysis, analysis.ID, analysis); err != nil {
		s.storeFailed(w, err)
		return
	}
	s.stored(kindAnalysis)
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	var analysis ImageAnalysis
	if !s.load(w, r, kindAnalysis, chi.URLParam(r, "analysisID"), &analysis) {
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) regenerate(w http.ResponseWriter, r *http.Request) {
	var body regenerateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, errValidation, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	provider := body.Provider
	if provider == "" {
		provider = "openai"
	}
	if !regenerateProviders[provider] {
		writeError(w, http.StatusBadRequest, errInvalidProvider, fmt.Sprintf("Invalid provider: %s", provider))
		return
	}

	var analysis ImageAnalysis
	if !s.load(w, r, kindAnalysis, chi.URLParam(r, "analysisID"), &analysis) {
		return
	}

	// A custom prompt wins over the analysis description.
	prompt := analysis.PromptDescription
	if body.Prompt != nil && strings.TrimSpace(*body.Prompt) != "" {
		prompt = *body.Prompt
	}

	data, err := s.provider.Generate(r.Context(), prompt, provider)
	if err != nil {
		s.providerFailed(w, err)
		return
	}
	regen := RegeneratedImage{
		ID:         s.newID(),
		AnalysisID: analysis.ID,
		Provider:   provider,
		PromptUsed: prompt,
		Data:       data,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.artifacts.put(r.Context(), kindRegenerated, regen.ID, regen); err != nil {
		s.storeFailed(w, err)
		return
	}
	s.stored(kindRegenerated)
	writeJSON(w, http.StatusOK, imageResponse{ID: regen.ID, Data: base64.StdEncoding.EncodeToString(data)})
}

func (s *Server) improveFromOriginal(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.improvePrompt(w, r)
	if !ok {
		return
	}
	var origin RegeneratedImage
	if !s.load(w, r, kindRegenerated, chi.URLParam(r, "regeneratedID"), &origin) {
		return
	}
	s.improve(w, r, origin.Data, origin.ID, origin.ID, prompt)
}

func (s *Server) improveFromImproved(w http.ResponseWriter, r *http.Request) {
	prompt, ok := s.improvePrompt(w, r)
	if !ok {
		return
	}
	var previous ImprovedImage
	if !s.load(w, r, kindImproved, chi.URLParam(r, "improvedID"), &previous) {
		return
	}
	// The new link still points back to the chain origin.
	s.improve(w, r, previous.Data, previous.RegeneratedImageID, previous.ID, prompt)
}

func (s *Server) improvePrompt(w http.ResponseWriter, r *http.Request) (string, bool) {
	var body improveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errValidation, fmt.Sprintf("invalid request body: %v", err))
		return "", false
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeError(w, http.StatusBadRequest, errValidation, "Improvement prompt cannot be empty.")
		return "", false
	}
	return body.Prompt, true
}

func (s *Server) improve(w http.ResponseWriter, r *http.Request, base []byte, originID, parentID, prompt string) {
	data, err := s.provider.Improve(r.Context(), base, prompt)
	if err != nil {
		s.providerFailed(w, err)
		return
	}
	improved := ImprovedImage{
		ID:                 s.newID(),
		RegeneratedImageID: originID,
		ParentID:           parentID,
		Prompt:             prompt,
		Data:               data,
		CreatedAt:          s.now().UTC(),
	}
	if err := s.artifacts.put(r.Context(), kindImproved, improved.ID, improved); err != nil {
		s.storeFailed(w, err)
		return
	}
	s.stored(kindImproved)
	writeJSON(w, http.StatusOK, imageResponse{ID: improved.ID, Data: base64.StdEncoding.EncodeToString(data)})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.artifacts.sessions(r.Context())
	if err != nil {
		s.storeFailed(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// load fetches an artifact or writes the matching error response.
func (s *Server) load(w http.ResponseWriter, r *http.Request, kind, id string, v any) bool {
	err := s.artifacts.get(r.Context(), kind, id, v)
	if err == nil {
		return true
	}
	if errors.Is(err, errArtifactNotFound) {
		writeError(w, http.StatusNotFound, errNotFound, fmt.Sprintf("%s %s not found", kind, id))
		return false
	}
	s.storeFailed(w, err)
	return false
}

func (s *Server) storeFailed(w http.ResponseWriter, err error) {
	s.logger.Error("Artifact store failure", "error", err)
	writeError(w, http.StatusInternalServerError, errDatabase, err.Error())
}

func (s *Server) providerFailed(w http.ResponseWriter, err error) {
	s.logger.Warn("Provider failure", "error", err)
	writeError(w, http.StatusServiceUnavailable, errAIService, err.Error())
}

func (s *Server) stored(kind string) {
	if s.metrics != nil {
		s.metrics.ArtifactStored(kind)
	}
}

// Package http implements ports.Backend over the Sketchy HTTP API.
package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/ports"
)

// DefaultBaseURL points at a local development backend.
const DefaultBaseURL = "http://localhost:8080/api/v1"

// Client issues one request per call and never retries.
type Client struct {
	base    string
	http    *http.Client
	timeout *time.Duration
	logger  *slog.Logger
}

var _ ports.Backend = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. The client is never
// modified; WithTimeout applies to a copy of it.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout bounds every request. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.timeout = &d
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// New creates a Client for the API rooted at baseURL (".../api/v1").
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   &http.Client{Timeout: 2 * time.Minute},
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout != nil {
		hc := *c.http
		hc.Timeout = *c.timeout
		c.http = &hc
	}
	return c
}

// BaseURL returns the API root in use.
func (c *Client) BaseURL() string {
	return c.base
}

type uploadResponse struct {
	Count          int      `json:"count"`
	SessionID      string   `json:"session_id"`
	UploadedImages []string `json:"uploaded_images"`
}

type analysisResponse struct {
	ID                string `json:"id"`
	PromptDescription string `json:"prompt_description"`
}

type imageResponse struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Upload sends all files in one multipart request under the "images" field.
func (c *Client) Upload(ctx context.Context, files []domain.FileHandle) (ports.UploadResult, error) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, f := range files {
		if err := writeFilePart(mw, f); err != nil {
			return ports.UploadResult{}, domain.TransportFailure(domain.StepUpload.FailureMessage(), err)
		}
	}
	if err := mw.Close(); err != nil {
		return ports.UploadResult{}, domain.TransportFailure(domain.StepUpload.FailureMessage(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", body)
	if err != nil {
		return ports.UploadResult{}, domain.TransportFailure(domain.StepUpload.FailureMessage(), err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out uploadResponse
	if err := c.do(req, domain.StepUpload, &out); err != nil {
		return ports.UploadResult{}, err
	}
	return ports.UploadResult{Count: out.Count, SessionID: out.SessionID, ImageIDs: out.UploadedImages}, nil
}

func writeFilePart(mw *multipart.Writer, f domain.FileHandle) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.Name(), err)
	}
	defer rc.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, f.Name()))
	if mt := f.MIMEType(); mt != "" {
		h.Set("Content-Type", mt)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name(), err)
	}
	return nil
}

// Analyze requests the analysis of an uploaded image.
func (c *Client) Analyze(ctx context.Context, imageID, provider string) (domain.Analysis, error) {
	u := c.base + "/analyze/" + url.PathEscape(imageID)
	if provider != "" {
		u += "?provider=" + url.QueryEscape(provider)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return domain.Analysis{}, domain.TransportFailure(domain.StepAnalyze.FailureMessage(), err)
	}

	var out analysisResponse
	if err := c.do(req, domain.StepAnalyze, &out); err != nil {
		return domain.Analysis{}, err
	}
	return domain.Analysis{ID: out.ID, PromptDescription: out.PromptDescription}, nil
}

// Regenerate requests an image for the analysis.
func (c *Client) Regenerate(ctx context.Context, analysisID, prompt, provider string) (domain.Regeneration, error) {
	payload := map[string]string{"prompt": prompt}
	if provider != "" {
		payload["provider"] = provider
	}
	req, err := c.jsonRequest(ctx, "/regenerate/"+url.PathEscape(analysisID), payload)
	if err != nil {
		return domain.Regeneration{}, domain.TransportFailure(domain.StepRegenerate.FailureMessage(), err)
	}

	var out imageResponse
	if err := c.do(req, domain.StepRegenerate, &out); err != nil {
		return domain.Regeneration{}, err
	}
	data, err := decodeImage(out.Data)
	if err != nil {
		return domain.Regeneration{}, domain.RemoteFailure(domain.StepRegenerate.FailureMessage(), err)
	}
	return domain.Regeneration{ID: out.ID, ImageData: data, Prompt: prompt}, nil
}

// Improve refines the regeneration (FromOriginal) or a previous link.
func (c *Client) Improve(ctx context.Context, r ports.ImproveRequest) (domain.ChainLink, error) {
	path := "/improve/from_improved/"
	if r.FromOriginal {
		path = "/improve/from_original/"
	}
	req, err := c.jsonRequest(ctx, path+url.PathEscape(r.TargetID), map[string]string{"prompt": r.Prompt})
	if err != nil {
		return domain.ChainLink{}, domain.TransportFailure(domain.StepImprove.FailureMessage(), err)
	}

	var out imageResponse
	if err := c.do(req, domain.StepImprove, &out); err != nil {
		return domain.ChainLink{}, err
	}
	data, err := decodeImage(out.Data)
	if err != nil {
		return domain.ChainLink{}, domain.RemoteFailure(domain.StepImprove.FailureMessage(), err)
	}
	return domain.ChainLink{ID: out.ID, ImageData: data, Prompt: r.Prompt}, nil
}

func (c *Client) jsonRequest(ctx context.Context, path string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends the request and decodes a 2xx JSON body into out. Failures become
// TransportFailure (no response) or RemoteFailure (error status) carrying the
// server message when there is one.
func (c *Client) do(req *http.Request, step domain.Step, out any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("Request failed", "method", req.Method, "url", req.URL.Path, "error", err)
		return domain.TransportFailure(step.FailureMessage(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.TransportFailure(step.FailureMessage(), err)
	}
	c.logger.Debug("Request done", "method", req.Method, "url", req.URL.Path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		msg := step.FailureMessage()
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return domain.RemoteFailure(msg, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return domain.RemoteFailure(step.FailureMessage(), fmt.Errorf("invalid response body: %w", err))
	}
	return nil
}

// decodeImage accepts bare base64 or a data URI.
func decodeImage(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid image data: %w", err)
	}
	return data, nil
}

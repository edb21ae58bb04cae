// Package upstream issues the outbound streaming transcription request and
// exposes the provider's response as a byte stream.
package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// Request carries one chunk's audio to the provider.
type Request struct {
	// Audio is the raw audio payload.
	Audio []byte
	// FileName is the file name sent in the multipart part.
	FileName string
	// ContentType is the audio MIME type. Defaults to application/octet-stream.
	ContentType string
	// Language is the expected language of the audio (e.g. "en").
	Language string
}

// Client opens a streaming transcription call. The returned stream is tied
// to the HTTP response body: closing it, or cancelling ctx, tears down the
// provider connection instead of draining it.
type Client interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// StatusError is returned when the provider answers with a non-success
// status. The provider's own error text is preserved.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("transcription provider error (status %d): %s", e.StatusCode, e.Body)
}

// Config holds settings for the streaming transcription provider.
type Config struct {
	// BaseURL is the provider endpoint root.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	// APIKey is the bearer token for the provider.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	// Model is the transcription model requested.
	Model string `yaml:"model" mapstructure:"model"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini-transcribe"
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("upstream.api_key is required")
	}
	return nil
}

// HTTPClient implements Client against the provider's HTTP API.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient creates a provider client. No overall timeout is set on the
// HTTP client: responses are long-lived streams and cancellation comes from
// the caller's context.
func NewHTTPClient(cfg Config) *HTTPClient {
	cfg.ApplyDefaults()
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// errorBodyLimit bounds how much of a provider error body is surfaced.
const errorBodyLimit = 8 << 10

// Open posts the audio as a multipart request with incremental output
// requested and returns the provider's event-stream body.
func (c *HTTPClient) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileName := req.FileName
	if fileName == "" {
		fileName = "audio.webm"
	}
	part, err := createFilePart(writer, "file", fileName, req.ContentType)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}

	_ = writer.WriteField("model", c.cfg.Model)
	if req.Language != "" {
		_ = writer.WriteField("language", req.Language)
	}
	_ = writer.WriteField("stream", "true")
	writer.Close()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return resp.Body, nil
}

// IsAvailable checks if the provider is reachable.
func (c *HTTPClient) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// createFilePart adds a file part, honoring a custom content type.
func createFilePart(w *multipart.Writer, field, fileName, contentType string) (io.Writer, error) {
	if contentType == "" {
		return w.CreateFormFile(field, fileName)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	header.Set("Content-Type", contentType)
	return w.CreatePart(header)
}

package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/MikkoParkkola/MistralOCR/logging"
)

// Default endpoint configuration for the hosted API.
const (
	DefaultBaseURL = "https://api.mistral.ai"
	DefaultModel   = "mistral-ocr-latest"

	ocrPath    = "/v1/ocr"
	modelsPath = "/v1/models"
)

// Construction errors.
var (
	ErrNilHTTPClient = errors.New("mistral: HTTP client cannot be nil")
	ErrNilLogger     = errors.New("mistral: logger cannot be nil")
)

// ClientConfig holds the endpoint settings for a Client.
type ClientConfig struct {
	// BaseURL is the API origin without a trailing slash.
	BaseURL string

	// Model is the default OCR model used when a request names none.
	Model string
}

// DefaultClientConfig returns the production endpoint configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
	}
}

// Client calls the Mistral OCR API on behalf of one credential. It is safe
// for concurrent use.
type Client struct {
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
	config     ClientConfig
}

// NewClient creates a Client for the given credential.
//
// Parameters:
//   - apiKey: the bearer credential; surrounding whitespace is trimmed
//   - httpClient: the HTTP client to use, typically core.GetHTTPClient
//   - logger: structured logger; the credential itself is never logged
//   - config: endpoint settings; zero fields fall back to defaults
//
// Returns an error when the key is empty or a dependency is nil.
func NewClient(apiKey string, httpClient *http.Client, logger *logging.Logger, config ClientConfig) (*Client, error) {
	sanitized, err := SanitizeAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		return nil, ErrNilHTTPClient
	}
	if logger == nil {
		return nil, ErrNilLogger
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return &Client{
		apiKey:     sanitized,
		httpClient: httpClient,
		logger:     logger,
		config:     config,
	}, nil
}

// MaskedAPIKey returns the client's credential in masked form for logging.
func (c *Client) MaskedAPIKey() string {
	return MaskAPIKey(c.apiKey)
}

// Extract runs one document through the OCR API and returns the normalized
// result. Local read failures surface as plain errors; transport failures
// and upstream rejections surface as *Error.
func (c *Client) Extract(ctx context.Context, req ExtractionRequest) (*ExtractionResult, error) {
	start := time.Now()

	data := req.Data
	if data == nil {
		fileData, err := os.ReadFile(req.Path)
		if err != nil {
			return nil, fmt.Errorf("mistral: failed to read input file: %w", err)
		}
		data = fileData
	}

	mimeType := req.MIME
	if mimeType == "" {
		mimeType = GuessMIME(req.Path)
	}

	payload := ocrRequest{
		Model:    req.Model,
		Document: buildDocument(mimeType, data),
		Language: req.Language,
	}
	if payload.Model == "" {
		payload.Model = c.config.Model
	}

	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("mistral: failed to encode request: %w", err)
	}

	c.logger.Debug("submitting extraction request",
		zap.String("model", payload.Model),
		zap.String("mime_type", mimeType),
		zap.String("document_type", payload.Document.Type),
		zap.Int("input_bytes", len(data)),
	)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+ocrPath, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("mistral: failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, responseBody)
		c.logger.Warn("extraction request rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, apiErr
	}

	result, err := buildResult(responseBody, req.OutputFormat)
	if err != nil {
		return nil, err
	}

	c.logger.Info("extraction completed",
		zap.String("model", payload.Model),
		zap.Int("tokens", result.Tokens),
		zap.Int("output_chars", len(result.Text)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// buildDocument chooses the attachment branch from the MIME type: images
// travel as image_url attachments, everything else as document_url.
func buildDocument(mimeType string, data []byte) documentPayload {
	dataURL := EncodeDataURL(mimeType, data)
	if IsImageMIME(mimeType) {
		return documentPayload{Type: "image_url", ImageURL: dataURL}
	}
	return documentPayload{Type: "document_url", DocumentURL: dataURL}
}

// buildResult normalizes a successful upstream body into an
// ExtractionResult rendered in the requested output format.
func buildResult(body []byte, outputFormat string) (*ExtractionResult, error) {
	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("mistral: failed to decode response: %w", err)
	}

	text := parsed.Text
	if len(parsed.Pages) > 0 {
		segments := make([]string, len(parsed.Pages))
		for i, page := range parsed.Pages {
			segments[i] = page.Markdown
		}
		text = joinPages(segments)
	}

	switch outputFormat {
	case "text":
		text = StripMarkdown(text)
	case "json":
		pretty, err := FormatJSONPayload(body)
		if err != nil {
			return nil, fmt.Errorf("mistral: failed to format response: %w", err)
		}
		text = pretty
	}

	tokens := 0
	switch {
	case parsed.Usage != nil:
		tokens = parsed.Usage.TotalTokens
	case parsed.UsageInfo != nil:
		tokens = parsed.UsageInfo.PagesProcessed
	}
	if tokens < 0 {
		tokens = 0
	}

	cost := parsed.Cost
	if cost < 0 {
		cost = 0
	}

	return &ExtractionResult{
		Text:   text,
		Tokens: tokens,
		Cost:   cost,
	}, nil
}

// ListModels probes the upstream models endpoint and returns its HTTP
// status. A transport failure returns a non-nil error instead of a status.
func (c *Client) ListModels(ctx context.Context) (int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+modelsPath, nil)
	if err != nil {
		return 0, fmt.Errorf("mistral: failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, newTransportError(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

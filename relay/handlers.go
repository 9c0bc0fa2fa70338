package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MikkoParkkola/MistralOCR/mistral"
	"github.com/MikkoParkkola/MistralOCR/usage"
)

// ocrRequestBody is the JSON body of POST /ocr. Image and File are
// alternates; either carries a data URL (or bare base64 payload).
type ocrRequestBody struct {
	Image    string `json:"image"`
	File     string `json:"file"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	Language string `json:"language"`
	Format   string `json:"format"`
}

// ocrResponseBody is the JSON reply of POST /ocr.
type ocrResponseBody struct {
	Markdown string  `json:"markdown"`
	Tokens   int     `json:"tokens"`
	Cost     float64 `json:"cost"`
}

// Headers defaulted on proxied requests when the caller does not send
// their own, so upstream sees a consistent extension identity.
const (
	defaultOrigin    = "https://mistral-ocr.extension"
	defaultReferer   = "https://mistral-ocr.extension/"
	defaultUserAgent = "MistralOCR-Relay/1.0"
)

// newUpstreamClient builds a client bound to the caller's credential.
func (s *Server) newUpstreamClient(apiKey string) (*mistral.Client, error) {
	return mistral.NewClient(apiKey, s.config.HTTPClient, s.logger, s.config.Upstream)
}

// handleOCR decodes an uploaded document, runs it through the retrying
// extraction pipeline, and returns markdown plus usage counters.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body ocrRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	dataURL := body.Image
	if dataURL == "" {
		dataURL = body.File
	}
	apiKey, keyErr := ResolveAPIKey(body.APIKey, r)
	if dataURL == "" || keyErr != nil {
		writeError(w, http.StatusBadRequest, "file/image and api_key required")
		return
	}

	mimeType, data, err := mistral.DecodeDataURL(dataURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid document payload")
		return
	}

	scratchPath, cleanup, err := writeScratchFile(s.config.ScratchDir, mimeType, data)
	if err != nil {
		s.logger.Error("scratch file write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer cleanup()

	client, err := s.newUpstreamClient(apiKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "file/image and api_key required")
		return
	}

	start := time.Now()
	result, err := client.ExtractWithRetry(r.Context(), mistral.ExtractionRequest{
		Path:         scratchPath,
		Model:        body.Model,
		Language:     body.Language,
		OutputFormat: body.Format,
	}, s.config.Retry)
	if err != nil {
		s.recordUsage(r.Context(), usage.Record{
			Source:   usage.SourceRelay,
			MIME:     mimeType,
			Model:    body.Model,
			Duration: time.Since(start),
			Status:   usage.StatusError,
		})
		status, message := mapExtractionError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("extraction failed", zap.Error(err))
		}
		writeError(w, status, message)
		return
	}

	s.recordUsage(r.Context(), usage.Record{
		Source:   usage.SourceRelay,
		MIME:     mimeType,
		Model:    body.Model,
		Tokens:   result.Tokens,
		Cost:     result.Cost,
		Duration: time.Since(start),
	})

	writeJSON(w, http.StatusOK, ocrResponseBody{
		Markdown: result.Text,
		Tokens:   result.Tokens,
		Cost:     result.Cost,
	})
}

// mapExtractionError translates pipeline failures to relay responses.
// Authentication rejections pass through as 401/403, other upstream or
// transport failures become 502, and anything unexpected becomes a
// generic 500 with no internal detail.
func mapExtractionError(err error) (int, string) {
	var apiErr *mistral.Error
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError, "internal error"
	}

	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		return http.StatusUnauthorized, apiErr.Message
	case apiErr.StatusCode == http.StatusForbidden:
		return http.StatusForbidden, apiErr.Message
	case strings.Contains(apiErr.Message, "401"):
		return http.StatusUnauthorized, apiErr.Message
	case strings.Contains(apiErr.Message, "403"):
		return http.StatusForbidden, apiErr.Message
	default:
		return http.StatusBadGateway, apiErr.Message
	}
}

// handleHealth probes the upstream models endpoint with the caller's
// credential and reports whether the key works.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	apiKey, err := ResolveAPIKey("", r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "missing api key"})
		return
	}

	client, err := s.newUpstreamClient(apiKey)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "missing api key"})
		return
	}

	status, err := client.ListModels(r.Context())
	switch {
	case err != nil:
		writeJSON(w, http.StatusBadGateway, map[string]string{"status": "upstream error"})
	case status == http.StatusOK:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	default:
		writeJSON(w, status, map[string]string{"status": "unauthorized"})
	}
}

// hopByHopHeaders are connection-level response headers that must not
// be forwarded to the caller (RFC 7230 section 6.1).
var hopByHopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

// handleProxy forwards GET and POST requests under /v1/ to the upstream
// API with reconstructed headers, returning the upstream status, headers,
// and body unchanged apart from hop-by-hop headers.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	apiKey, err := ResolveAPIKey("", r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "api_key required")
		return
	}

	upstreamURL := s.config.Upstream.BaseURL + r.URL.Path
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	var body io.Reader
	if r.Method == http.MethodPost {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, upstreamURL, body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("X-API-Key", apiKey)
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Origin", headerOrDefault(r, "Origin", defaultOrigin))
	req.Header.Set("Referer", headerOrDefault(r, "Referer", defaultReferer))
	req.Header.Set("User-Agent", headerOrDefault(r, "User-Agent", defaultUserAgent))

	resp, err := s.config.HTTPClient.Do(req)
	if err != nil {
		s.logger.Warn("proxy request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "upstream error")
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if hopByHopHeaders[name] {
			continue
		}
		w.Header()[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

func headerOrDefault(r *http.Request, name, fallback string) string {
	if value := r.Header.Get(name); value != "" {
		return value
	}
	return fallback
}

// recordUsage writes a ledger row when recording is enabled. Ledger
// failures are logged, never surfaced to the caller.
func (s *Server) recordUsage(ctx context.Context, rec usage.Record) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Add(ctx, rec); err != nil {
		s.logger.Warn("usage record failed", zap.Error(err))
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

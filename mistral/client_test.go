package mistral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MikkoParkkola/MistralOCR/logging"
)

func newTestClient(t *testing.T, upstream *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient("test-key-0123456789abcdef", upstream.Client(), logging.NewNop(), ClientConfig{
		BaseURL: upstream.URL,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		httpClient *http.Client
		logger     *logging.Logger
		wantErr    error
	}{
		{name: "empty key", apiKey: "", httpClient: http.DefaultClient, logger: logging.NewNop(), wantErr: ErrEmptyAPIKey},
		{name: "nil http client", apiKey: "key", httpClient: nil, logger: logging.NewNop(), wantErr: ErrNilHTTPClient},
		{name: "nil logger", apiKey: "key", httpClient: http.DefaultClient, logger: nil, wantErr: ErrNilLogger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.apiKey, tt.httpClient, tt.logger, ClientConfig{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient("  key-with-space  ", http.DefaultClient, logging.NewNop(), ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.config.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", client.config.BaseURL, DefaultBaseURL)
	}
	if client.config.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", client.config.Model, DefaultModel)
	}
	if client.apiKey != "key-with-space" {
		t.Errorf("apiKey = %q, whitespace should be trimmed", client.apiKey)
	}
}

func TestExtractImageDocumentSelection(t *testing.T) {
	tests := []struct {
		name         string
		fileName     string
		wantDocType  string
		wantURLField string
	}{
		{name: "png travels as image_url", fileName: "scan.png", wantDocType: "image_url", wantURLField: "image_url"},
		{name: "pdf travels as document_url", fileName: "report.pdf", wantDocType: "document_url", wantURLField: "document_url"},
		{name: "unknown type travels as document_url", fileName: "blob.zzzz", wantDocType: "document_url", wantURLField: "document_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured map[string]any
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/ocr" {
					t.Errorf("unexpected path %q", r.URL.Path)
				}
				if auth := r.Header.Get("Authorization"); !strings.HasPrefix(auth, "Bearer ") {
					t.Errorf("missing bearer auth, got %q", auth)
				}
				if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]any{
					"pages": []map[string]string{{"markdown": "# Result"}},
					"usage": map[string]int{"total_tokens": 42},
				})
			}))
			defer upstream.Close()

			client := newTestClient(t, upstream)
			path := writeTempFile(t, tt.fileName, []byte("content"))

			result, err := client.Extract(context.Background(), ExtractionRequest{Path: path})
			if err != nil {
				t.Fatalf("Extract failed: %v", err)
			}
			if result.Text != "# Result" {
				t.Errorf("Text = %q, want %q", result.Text, "# Result")
			}
			if result.Tokens != 42 {
				t.Errorf("Tokens = %d, want 42", result.Tokens)
			}

			if captured["model"] != DefaultModel {
				t.Errorf("model = %v, want default %q when omitted", captured["model"], DefaultModel)
			}
			doc, ok := captured["document"].(map[string]any)
			if !ok {
				t.Fatalf("request has no document object: %v", captured)
			}
			if doc["type"] != tt.wantDocType {
				t.Errorf("document type = %v, want %q", doc["type"], tt.wantDocType)
			}
			url, _ := doc[tt.wantURLField].(string)
			if !strings.HasPrefix(url, "data:") || !strings.Contains(url, ";base64,") {
				t.Errorf("%s = %q, want data URL", tt.wantURLField, url)
			}
		})
	}
}

func TestExtractJoinsPages(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"pages": []map[string]string{
				{"markdown": "page one"},
				{"markdown": "page two"},
				{"markdown": "page three"},
			},
			"usage_info": map[string]int{"pages_processed": 3},
		})
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	path := writeTempFile(t, "multi.pdf", []byte("pdf"))

	result, err := client.Extract(context.Background(), ExtractionRequest{Path: path})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "page one\n\npage two\n\npage three" {
		t.Errorf("pages not joined with blank lines: %q", result.Text)
	}
	if result.Tokens != 3 {
		t.Errorf("Tokens = %d, want pages_processed fallback of 3", result.Tokens)
	}
}

func TestExtractFlatTextFallback(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"text": "flat body", "cost": 0.002})
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	path := writeTempFile(t, "flat.pdf", []byte("pdf"))

	result, err := client.Extract(context.Background(), ExtractionRequest{Path: path})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Text != "flat body" {
		t.Errorf("Text = %q, want flat body", result.Text)
	}
	if result.Tokens != 0 {
		t.Errorf("Tokens = %d, want 0 when usage is absent", result.Tokens)
	}
	if result.Cost != 0.002 {
		t.Errorf("Cost = %v, want 0.002", result.Cost)
	}
}

func TestExtractNegativeCountersClamped(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"text":  "ok",
			"usage": map[string]int{"total_tokens": -5},
			"cost":  -0.01,
		})
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	path := writeTempFile(t, "neg.pdf", []byte("pdf"))

	result, err := client.Extract(context.Background(), ExtractionRequest{Path: path})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.Tokens != 0 {
		t.Errorf("Tokens = %d, want clamped to 0", result.Tokens)
	}
	if result.Cost != 0 {
		t.Errorf("Cost = %v, want clamped to 0", result.Cost)
	}
}

func TestExtractOutputFormats(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"pages": []map[string]string{{"markdown": "# Title\n\nSome **bold** text"}},
		})
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	path := writeTempFile(t, "doc.pdf", []byte("pdf"))

	t.Run("text strips markdown", func(t *testing.T) {
		result, err := client.Extract(context.Background(), ExtractionRequest{Path: path, OutputFormat: "text"})
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if strings.ContainsAny(result.Text, "#*") {
			t.Errorf("text output still contains markdown: %q", result.Text)
		}
	})

	t.Run("json pretty-prints payload", func(t *testing.T) {
		result, err := client.Extract(context.Background(), ExtractionRequest{Path: path, OutputFormat: "json"})
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(result.Text), &decoded); err != nil {
			t.Fatalf("json output is not valid JSON: %v", err)
		}
		if !strings.Contains(result.Text, "\n  ") {
			t.Errorf("json output is not indented: %q", result.Text)
		}
	})
}

func TestExtractMissingFile(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("upstream should not be called for a missing file")
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	_, err := client.Extract(context.Background(), ExtractionRequest{Path: filepath.Join(t.TempDir(), "missing.pdf")})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if StatusCodeOf(err) != 0 {
		t.Errorf("local read failure should not carry an HTTP status, got %d", StatusCodeOf(err))
	}
}

func TestExtractUpstreamRejection(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthorized"}`))
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	path := writeTempFile(t, "doc.pdf", []byte("pdf"))

	_, err := client.Extract(context.Background(), ExtractionRequest{Path: path})
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !IsAuthError(err) {
		t.Errorf("401 should be an auth error, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "API error: 401 ") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestExtractContextCancellation(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	path := writeTempFile(t, "doc.pdf", []byte("pdf"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Extract(ctx, ExtractionRequest{Path: path})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestListModels(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":[]}`))
	}))
	defer upstream.Close()

	client := newTestClient(t, upstream)
	status, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if status != http.StatusOK {
		t.Errorf("status = %d, want 200", status)
	}
}

func TestListModelsTransportFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	client, err := NewClient("key", http.DefaultClient, logging.NewNop(), ClientConfig{BaseURL: upstream.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := client.ListModels(context.Background()); err == nil {
		t.Error("expected transport error for closed upstream")
	}
}

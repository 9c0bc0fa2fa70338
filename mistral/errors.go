package mistral

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// maxErrorBodyLength caps how much upstream body text an error message
	// may carry before truncation.
	maxErrorBodyLength = 1000

	truncationMarker = "... [truncated]"
)

// Error is the single error type for failed OCR calls. Transport failures
// carry StatusCode 0; upstream rejections carry the HTTP status.
type Error struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// IsAuth reports whether the error is an authentication or authorization
// rejection. Such errors are never retried.
func (e *Error) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsAuthError reports whether err is an authentication failure from the
// upstream API.
func IsAuthError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.IsAuth()
}

// StatusCodeOf returns the upstream status code carried by err, or 0 for
// transport failures and non-API errors.
func StatusCodeOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// newTransportError wraps a network-level failure that produced no HTTP
// response.
func newTransportError(err error) *Error {
	return &Error{
		StatusCode: 0,
		Message:    fmt.Sprintf("network error: %v", err),
	}
}

// newAPIError normalizes a non-2xx upstream response into an Error. The
// body is summarized with document payloads scrubbed so the message never
// echoes base64 content back at the caller.
func newAPIError(statusCode int, body []byte) *Error {
	return &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("API error: %d %s", statusCode, truncateBody(summarizeBody(body))),
	}
}

// summarizeBody turns an upstream error body into a short human-readable
// string. Parseable JSON bodies have payload-bearing fields removed and are
// condensed to validation messages when present; anything else passes
// through as raw text.
func summarizeBody(body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return string(body)
	}

	scrubPayloadFields(payload)

	if summary := summarizeDetail(payload); summary != "" {
		return summary
	}

	clean, err := json.Marshal(payload)
	if err != nil {
		return string(body)
	}
	return string(clean)
}

// scrubPayloadFields recursively removes fields that may carry encoded
// document content from a decoded JSON value.
func scrubPayloadFields(value any) {
	switch v := value.(type) {
	case map[string]any:
		delete(v, "file")
		delete(v, "document_url")
		delete(v, "image_url")
		for _, child := range v {
			scrubPayloadFields(child)
		}
	case []any:
		for _, child := range v {
			scrubPayloadFields(child)
		}
	}
}

// summarizeDetail extracts validation messages from the upstream error
// shape: a top-level "detail" list, or one nested under "message". Each
// entry contributes "loc.path: msg"; entries are joined with "; ".
func summarizeDetail(value any) string {
	obj, ok := value.(map[string]any)
	if !ok {
		return ""
	}

	detail, ok := obj["detail"].([]any)
	if !ok {
		nested, nestedOK := obj["message"].(map[string]any)
		if !nestedOK {
			return ""
		}
		detail, ok = nested["detail"].([]any)
		if !ok {
			return ""
		}
	}

	var parts []string
	for _, entry := range detail {
		item, itemOK := entry.(map[string]any)
		if !itemOK {
			continue
		}
		msg, _ := item["msg"].(string)
		loc := joinLoc(item["loc"])
		switch {
		case loc != "" && msg != "":
			parts = append(parts, loc+": "+msg)
		case msg != "":
			parts = append(parts, msg)
		}
	}
	return strings.Join(parts, "; ")
}

// joinLoc renders a "loc" path list as a dotted string, e.g.
// ["body","document"] -> "body.document".
func joinLoc(value any) string {
	list, ok := value.([]any)
	if !ok {
		return ""
	}
	var parts []string
	for _, segment := range list {
		parts = append(parts, fmt.Sprint(segment))
	}
	return strings.Join(parts, ".")
}

func truncateBody(body string) string {
	if len(body) <= maxErrorBodyLength {
		return body
	}
	return body[:maxErrorBodyLength] + truncationMarker
}

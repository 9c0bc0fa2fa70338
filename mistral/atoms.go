// Package mistral provides the client for the hosted Mistral OCR API.
//
// atoms.go contains pure credential and encoding helpers with no
// dependencies.
package mistral

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Common validation errors for credentials.
var (
	// ErrEmptyAPIKey indicates that the API key is empty or whitespace-only.
	ErrEmptyAPIKey = errors.New("mistral: API key is empty")

	// ErrInvalidDataURL indicates a malformed data URL payload.
	ErrInvalidDataURL = errors.New("mistral: invalid data URL")
)

// FallbackMIME is used when a file's MIME type cannot be guessed.
const FallbackMIME = "application/octet-stream"

// SanitizeAPIKey trims surrounding whitespace from a credential.
// An empty-after-trim key counts as absent and returns ErrEmptyAPIKey.
//
// Example:
//
//	key, err := SanitizeAPIKey("  aB3dE6gH9jK2mN5pQ8sT1vW4yZ7aC0eF  ")
//	// key = "aB3dE6gH9jK2mN5pQ8sT1vW4yZ7aC0eF", err = nil
func SanitizeAPIKey(apiKey string) (string, error) {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return "", ErrEmptyAPIKey
	}
	return trimmed, nil
}

// ValidateAPIKey checks that a credential is plausible: non-empty after
// trimming and free of interior whitespace. It does not verify the key
// against the API; the relay health endpoint does that.
func ValidateAPIKey(apiKey string) error {
	trimmed, err := SanitizeAPIKey(apiKey)
	if err != nil {
		return err
	}
	if strings.ContainsAny(trimmed, " \t\r\n") {
		return errors.New("mistral: API key contains whitespace")
	}
	return nil
}

// MaskAPIKey returns a fixed-length masked form of the key safe for logging:
// the first four characters followed by eight asterisks. Returns "[empty]"
// for empty keys.
func MaskAPIKey(apiKey string) string {
	trimmed := strings.TrimSpace(apiKey)
	if trimmed == "" {
		return "[empty]"
	}
	if len(trimmed) < 4 {
		return "********"
	}
	return trimmed[:4] + "********"
}

// GuessMIME guesses a file's MIME type from its extension, falling back to
// FallbackMIME for unknown extensions. Any charset or other parameters are
// stripped.
func GuessMIME(path string) string {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		return FallbackMIME
	}
	if idx := strings.IndexByte(mimeType, ';'); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	return mimeType
}

// IsImageMIME reports whether the MIME type names an image.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// ExtensionForMIME returns a file extension (with leading dot) for the MIME
// type, or ".bin" when none is known.
func ExtensionForMIME(mimeType string) string {
	exts, err := mime.ExtensionsByType(mimeType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}

// EncodeDataURL wraps raw bytes in a data:<mime>;base64,<payload> URL.
func EncodeDataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = FallbackMIME
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// DecodeDataURL splits a data URL into its MIME type and decoded payload.
// A bare base64 string without the data: header is accepted with an empty
// MIME type, matching what browser extensions occasionally send.
func DecodeDataURL(dataURL string) (mimeType string, data []byte, err error) {
	header, encoded, found := strings.Cut(dataURL, ",")
	if !found {
		header, encoded = "", dataURL
	}

	if strings.Contains(header, ";base64") && strings.Contains(header, "/") {
		afterScheme := strings.TrimPrefix(header, "data:")
		if idx := strings.IndexByte(afterScheme, ';'); idx >= 0 {
			mimeType = afterScheme[:idx]
		}
	}

	data, decodeErr := base64.StdEncoding.DecodeString(encoded)
	if decodeErr != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, decodeErr)
	}
	return mimeType, data, nil
}

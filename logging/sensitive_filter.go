package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data.
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns contains compiled regex patterns for detecting sensitive
// data. Compiled once at package initialization.
var sensitivePatterns = []*regexp.Regexp{
	// Bearer tokens as they appear in forwarded Authorization headers
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{16,})`),

	// Mistral API keys are opaque 32-char alphanumeric strings
	regexp.MustCompile(`\b([a-zA-Z0-9]{32})\b`),

	// Inline data URLs carry the entire uploaded document; a base64 payload
	// in a log line is always a leak
	regexp.MustCompile(`(data:[a-z0-9.+/-]+;base64,[a-zA-Z0-9+/=]+)`),

	// Generic secret assignments
	regexp.MustCompile(`(?i)(api_key\s*[:=]\s*[^\s,;"]{8,})`),
	regexp.MustCompile(`(?i)(apikey\s*[:=]\s*[^\s,;"]{8,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;"]{8,})`),
	regexp.MustCompile(`(?i)(secret\s*[:=]\s*[^\s,;"]{8,})`),
}

// sensitiveFieldFragments are field-name fragments that indicate the value is
// a secret regardless of its shape.
var sensitiveFieldFragments = []string{
	"MISTRAL_API_KEY",
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
	"BEARER",
	"TOKEN",
	"SECRET",
	"PASSWORD",
}

// RedactSensitiveData scans a string value and redacts any detected sensitive
// data. This is a pure function.
//
// Patterns detected:
//   - Bearer tokens
//   - Bare 32-character API keys
//   - data: URLs with base64 payloads
//   - Generic api_key/token/secret assignments
//
// Example:
//
//	RedactSensitiveData("forwarding Bearer abcdef0123456789abcdef0123456789")
//	// "forwarding [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField redacts a field value if the field name indicates sensitive
// data, and scans the value itself otherwise.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField returns true if the field name indicates sensitive data.
// Only the name is inspected, never the value.
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)

	for _, fragment := range sensitiveFieldFragments {
		if strings.Contains(upperName, fragment) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value matches any sensitive data
// pattern.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}

	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

package core

import (
	"fmt"
)

// ConfigError represents a configuration-related error with actionable
// instructions.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

// Error codes for configuration errors.
const (
	ErrCodeMissingAPIKey       = "MISSING_API_KEY"
	ErrCodeInvalidOutputFormat = "INVALID_OUTPUT_FORMAT"
	ErrCodeConfigFileInvalid   = "CONFIG_FILE_INVALID"
	ErrCodeNoFilesMatched      = "NO_FILES_MATCHED"
)

// ErrMissingAPIKey returns an error for a missing credential.
func ErrMissingAPIKey() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingAPIKey,
		Message: "API key is required",
		Action:  "Pass -api-key, set MISTRAL_API_KEY, or add api_key to the config file",
	}
}

// ErrInvalidOutputFormat returns an error for an unsupported output format.
func ErrInvalidOutputFormat(format string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidOutputFormat,
		Message: fmt.Sprintf("Unsupported output format %q", format),
		Action:  "Use one of: markdown, text, json",
	}
}

// ErrConfigFileInvalid returns an error for an unreadable or unparseable
// config file.
func ErrConfigFileInvalid(path, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeConfigFileInvalid,
		Message: fmt.Sprintf("Cannot read config file %s: %s", path, reason),
		Action:  "Fix or remove the file; a fresh template is created automatically",
	}
}

// ErrNoFilesMatched returns an error when no input files match the given
// patterns.
func ErrNoFilesMatched() *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNoFilesMatched,
		Message: "No files matched the given patterns",
	}
}

// IsConfigError checks if an error is a ConfigError and returns it if so.
func IsConfigError(err error) (*ConfigError, bool) {
	if configErr, ok := err.(*ConfigError); ok {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from an error if it's a ConfigError.
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}

// Package core provides configuration loading and shared runtime plumbing
// for the MistralOCR CLI and relay.
package core

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Process exit codes.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// Output format identifiers accepted by the pipeline.
const (
	FormatMarkdown = "markdown"
	FormatText     = "text"
	FormatJSON     = "json"
)

// Defaults applied when neither flag, env var, nor config file supplies a
// value.
const (
	DefaultModel     = "mistral-ocr-latest"
	DefaultLogLevel  = "info"
	DefaultBaseURL   = "https://api.mistral.ai"
	DefaultRelayHost = "127.0.0.1"
	DefaultRelayPort = 5000

	// DefaultTimeout bounds every outbound upstream request.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the number of additional attempts after the first.
	DefaultMaxRetries = 2

	// DefaultRetryDelay is the base delay for exponential backoff.
	DefaultRetryDelay = 1 * time.Second
)

// FileConfig is the subset of configuration persisted to the config file.
// Field order here determines the serialized order, which keeps
// SaveConfig(LoadConfig(p)) byte-identical across round trips.
type FileConfig struct {
	APIKey       string `yaml:"api_key"`
	OutputFormat string `yaml:"output_format"`
	Language     string `yaml:"language"`
	LogLevel     string `yaml:"log_level"`
	Model        string `yaml:"model"`
}

// Config holds all resolved configuration values. It is populated once at
// startup and passed explicitly into each component; nothing in this package
// keeps mutable process-wide state.
type Config struct {
	// Persisted fields
	APIKey       string
	OutputFormat string
	Language     string
	LogLevel     string
	Model        string

	// Upstream API
	BaseURL string
	Timeout time.Duration

	// Retry policy
	MaxRetries int
	RetryDelay time.Duration

	// Relay
	RelayHost string
	RelayPort int

	// Optional extras
	UsageDBPath string
	LogFile     string
	DevMode     bool
}

// DefaultConfig returns a Config populated with template defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputFormat: FormatMarkdown,
		LogLevel:     DefaultLogLevel,
		Model:        DefaultModel,
		BaseURL:      DefaultBaseURL,
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryDelay:   DefaultRetryDelay,
		RelayHost:    DefaultRelayHost,
		RelayPort:    DefaultRelayPort,
	}
}

// DefaultConfigPath returns the per-user config file location,
// $HOME/.mistral-ocr.yaml. Falls back to the working directory when the home
// directory cannot be determined.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mistral-ocr.yaml"
	}
	return filepath.Join(home, ".mistral-ocr.yaml")
}

// LoadConfig reads the config file at path and layers it over template
// defaults, then applies environment variable overrides. A missing file is
// not an error; unset fields fall back to template defaults.
//
// Precedence (lowest to highest): defaults, config file, environment.
// CLI flag overrides are applied by the caller on the returned value.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Template defaults only
	case err != nil:
		return nil, ErrConfigFileInvalid(path, err.Error())
	default:
		var fc FileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, ErrConfigFileInvalid(path, err.Error())
		}
		applyFileConfig(cfg, fc)
	}

	applyEnvOverrides(cfg)

	if err := ValidateOutputFormat(cfg.OutputFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the persisted subset of cfg to path. The file is written
// with 0600 permissions because it may hold a credential.
func SaveConfig(cfg *Config, path string) error {
	fc := FileConfig{
		APIKey:       cfg.APIKey,
		OutputFormat: cfg.OutputFormat,
		Language:     cfg.Language,
		LogLevel:     cfg.LogLevel,
		Model:        cfg.Model,
	}

	data, err := yaml.Marshal(&fc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// EnsureConfigTemplate creates a template config file with empty values if
// none exists at path. It never writes a credential; persisting an API key
// requires an explicit SaveConfig call after user confirmation.
func EnsureConfigTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := yaml.Marshal(&FileConfig{})
	if err != nil {
		return fmt.Errorf("failed to marshal config template: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}

// applyFileConfig copies non-empty file values onto cfg.
func applyFileConfig(cfg *Config, fc FileConfig) {
	if fc.APIKey != "" {
		cfg.APIKey = fc.APIKey
	}
	if fc.OutputFormat != "" {
		cfg.OutputFormat = fc.OutputFormat
	}
	if fc.Language != "" {
		cfg.Language = fc.Language
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.Model != "" {
		cfg.Model = fc.Model
	}
}

// applyEnvOverrides applies MISTRAL_* environment variables onto cfg.
func applyEnvOverrides(cfg *Config) {
	cfg.APIKey = getEnvOrDefault("MISTRAL_API_KEY", cfg.APIKey)
	cfg.OutputFormat = getEnvOrDefault("MISTRAL_OCR_FORMAT", cfg.OutputFormat)
	cfg.Language = getEnvOrDefault("MISTRAL_OCR_LANGUAGE", cfg.Language)
	cfg.LogLevel = getEnvOrDefault("MISTRAL_OCR_LOG_LEVEL", cfg.LogLevel)
	cfg.Model = getEnvOrDefault("MISTRAL_OCR_MODEL", cfg.Model)
	cfg.BaseURL = getEnvOrDefault("MISTRAL_OCR_BASE_URL", cfg.BaseURL)
	cfg.UsageDBPath = getEnvOrDefault("MISTRAL_OCR_USAGE_DB", cfg.UsageDBPath)
	cfg.LogFile = getEnvOrDefault("MISTRAL_OCR_LOG_FILE", cfg.LogFile)
	cfg.DevMode = getEnvOrDefault("MISTRAL_OCR_DEV_MODE", "") == "true"

	if secs := parseIntEnv("MISTRAL_OCR_TIMEOUT", 0); secs > 0 {
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	if retries := parseIntEnv("MISTRAL_OCR_MAX_RETRIES", -1); retries >= 0 {
		cfg.MaxRetries = retries
	}
}

// ValidateOutputFormat checks that format is one of the supported output
// formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case FormatMarkdown, FormatText, FormatJSON:
		return nil
	default:
		return ErrInvalidOutputFormat(format)
	}
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an integer environment variable with a default.
func parseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetHTTPClient returns an HTTP client with the given per-request timeout.
// All outbound upstream requests share this client so the OS connection pool
// is reused across calls.
func GetHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

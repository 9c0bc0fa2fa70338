package mistral

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls the retry behavior of ExtractWithRetry.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// InitialDelay is the wait before the first retry. Each subsequent
	// retry waits InitialDelay scaled by Multiplier per attempt.
	InitialDelay time.Duration

	// Multiplier scales the delay between consecutive retries.
	Multiplier float64
}

// DefaultRetryConfig returns the standard policy: two retries with a one
// second initial delay doubling each attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 1 * time.Second,
		Multiplier:   2.0,
	}
}

// normalize fills nonsensical fields with defaults.
func (rc RetryConfig) normalize() RetryConfig {
	if rc.MaxRetries < 0 {
		rc.MaxRetries = 0
	}
	if rc.InitialDelay <= 0 {
		rc.InitialDelay = 1 * time.Second
	}
	if rc.Multiplier <= 1 {
		rc.Multiplier = 2.0
	}
	return rc
}

// ExtractWithRetry runs Extract with exponential backoff on transient
// failures. Authentication rejections (401, 403) and local errors are
// returned immediately without further attempts. Context cancellation
// interrupts any pending backoff wait.
func (c *Client) ExtractWithRetry(ctx context.Context, req ExtractionRequest, cfg RetryConfig) (*ExtractionResult, error) {
	cfg = cfg.normalize()

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying extraction",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
		}

		result, err := c.Extract(ctx, req)
		if err == nil {
			return result, nil
		}

		var apiErr *Error
		if !errors.As(err, &apiErr) {
			return nil, err
		}
		if apiErr.IsAuth() {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

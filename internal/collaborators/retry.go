package collaborators

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig configures exponential backoff retry for collaborator calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns a conservative default: three retries, capped
// at five seconds of backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

// IsRetryable reports whether err looks like a transient network or
// rate-limit failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, marker := range []string{
		"connection refused", "connection reset", "timeout",
		"temporary failure", "too many requests", "rate limit",
		"EAPI:1015", "EAPI:1003", "-1001", "-1021",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

// WithRetry runs operation with exponential backoff, aborting immediately on
// a non-retryable error or context cancellation.
func WithRetry(ctx context.Context, cfg RetryConfig, operation func() error) error {
	var lastErr error
	backoff := cfg.InitialBackoff

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxRetries {
			break
		}

		log.Debug().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("collaborator call failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}
	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config holds retry/backoff tuning.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// OnThrottle, if set, is invoked once per 429 response before
	// sleeping, so a caller (e.g. the concurrency gate) can react to
	// sustained upstream pressure by shrinking its permit ceiling.
	OnThrottle func(attempt int, err error)
	// OnSuccess, if set, is invoked after an operation completes
	// without error, so a caller can grow its permit ceiling back
	// toward the original limit once pressure subsides.
	OnSuccess func()
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     32 * time.Second,
		Multiplier:     2.0,
	}
}

// Backoff computes the wait duration for an attempt, honoring an
// upstream Retry-After hint when the error carries one, else falling
// back to jittered exponential backoff (±25%).
func Backoff(attempt int, err error, cfg Config) time.Duration {
	var retryErr *Error
	if errors.As(err, &retryErr) && retryErr.RetryAfter > 0 {
		return time.Duration(retryErr.RetryAfter) * time.Second
	}

	backoff := float64(cfg.InitialBackoff) * math.Pow(cfg.Multiplier, float64(attempt))
	if backoff > float64(cfg.MaxBackoff) {
		backoff = float64(cfg.MaxBackoff)
	}

	jitterRange := 0.25 * backoff
	jitter := (rand.Float64() * 2 * jitterRange) - jitterRange
	result := backoff + jitter

	if result > float64(cfg.MaxBackoff) {
		result = float64(cfg.MaxBackoff)
	}
	if result < 0 {
		result = 0
	}
	return time.Duration(result)
}

// isRateLimit reports whether err is our classified 429 Error, the
// only status that should trigger adaptive concurrency throttling.
func isRateLimit(err error) bool {
	var retryErr *Error
	return errors.As(err, &retryErr) && retryErr.Type == ErrTypeRateLimit
}

// ShouldRetry reports whether err is our classified, retryable Error.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var retryErr *Error
	if errors.As(err, &retryErr) {
		return retryErr.IsRetryable()
	}
	return false
}

// Operation is a unit of work that may fail with a classified Error.
type Operation func(ctx context.Context) error

// Do executes operation with exponential backoff retry, stopping early
// on a non-retryable error or context cancellation.
func Do(ctx context.Context, operation Operation, cfg Config) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := operation(ctx)
		if err == nil {
			if cfg.OnSuccess != nil {
				cfg.OnSuccess()
			}
			return nil
		}
		lastErr = err

		if !ShouldRetry(err) {
			return err
		}
		if attempt >= cfg.MaxRetries {
			return err
		}

		if cfg.OnThrottle != nil && isRateLimit(err) {
			cfg.OnThrottle(attempt, err)
		}

		wait := Backoff(attempt, err, cfg)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return lastErr
}

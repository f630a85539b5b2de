package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable reports a backend that could not be reached.
var ErrUnavailable = errors.New("cache backend unavailable")

// RetryableError marks an error as transient.
type RetryableError struct{ Err error }

// Retryable wraps err as transient. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is wrapped with Retryable.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff retries transient failures with exponential delay.
type Backoff struct {
	Attempts int
	Delay    time.Duration // before the second attempt; doubles each time
}

// DefaultBackoff is three attempts starting at one second.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts are used up, or ctx is done.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var lastErr error
	for i := range attempts {
		if lastErr = fn(); lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

package cache

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for cache backends.
var (
	// ErrNetwork is returned when a remote backend cannot be reached.
	ErrNetwork = errors.New("network error")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("cache closed")
)

// RetryableError marks an error as transient.
type RetryableError struct{ Err error }

// Retryable wraps err as a RetryableError. Retryable(nil) is nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err or any error it wraps is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff controls RetryWithBackoff.
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

// DefaultBackoff makes three attempts starting with a one second delay.
var DefaultBackoff = Backoff{Attempts: 3, Delay: time.Second}

// RetryWithBackoff calls fn until it succeeds, returns a non-retryable error,
// or DefaultBackoff is exhausted. The delay doubles after every attempt.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}

// Retry is RetryWithBackoff with b's settings.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
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

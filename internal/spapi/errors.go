package spapi

import (
	"errors"
	"fmt"
)

// RateLimitError means the offers endpoint kept returning 429 until the
// retry budget ran out. The item counts as failed and is retried on the
// next scheduled run.
type RateLimitError struct {
	ASIN     string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s after %d attempts", e.ASIN, e.Attempts)
}

// TransientError wraps a 5xx response or a transport failure. Retried
// within the budget, then surfaced as an item failure.
type TransientError struct {
	ASIN string
	Err  error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient error fetching offers for %s: %v", e.ASIN, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError is a non-retryable client error (4xx other than 429).
type PermanentError struct {
	ASIN       string
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent error fetching offers for %s (HTTP %d): %s",
		e.ASIN, e.StatusCode, e.Message)
}

// IsRateLimit reports whether err is a rate limit exhaustion.
func IsRateLimit(err error) bool {
	var target *RateLimitError
	return errors.As(err, &target)
}

// IsTransient reports whether err is a retryable upstream failure.
func IsTransient(err error) bool {
	var target *TransientError
	return errors.As(err, &target)
}

// IsPermanent reports whether err is a non-retryable item error.
func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

package httputil

import (
	"context"
	"errors"
	"time"
)

// MaxRetryDelay caps the doubling delay between attempts.
const MaxRetryDelay = 5 * time.Second

// RetryableError marks a failure worth another attempt. [Fetch] wraps
// network errors and 5xx responses in it.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry calls fn up to attempts times. Only errors wrapped in
// [RetryableError] are retried; the wait starts at delay and doubles up to
// [MaxRetryDelay]. It returns the last error, or ctx.Err() when the context
// ends while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil || !isRetryable(err) || attempt >= attempts {
			return err
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay = min(delay*2, MaxRetryDelay)
	}
}

func isRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

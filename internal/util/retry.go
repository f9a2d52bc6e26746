package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry calls fn up to attempts times, doubling the wait after each failure
// starting from baseDelay. It stops early on success, on an error wrapped
// with Permanent, or when ctx is done. The last error is returned wrapped
// with the number of attempts made.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := baseDelay

	var err error
	for n := 1; ; n++ {
		err = fn()
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if n == attempts {
			return fmt.Errorf("after %d attempts: %w", n, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("after %d attempts: %w", n, errors.Join(ctx.Err(), err))
		case <-time.After(delay):
		}
		delay *= 2
	}
}

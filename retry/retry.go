// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// DefaultBase is the first backoff interval.
const DefaultBase = 500 * time.Millisecond

// Policy configures Do.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries int
	// Base is the delay before the first retry; it doubles each retry.
	Base time.Duration
	// Permanent reports errors that must not be retried.
	Permanent func(error) bool
}

// PermanentError marks err as non-retriable regardless of Policy.Permanent.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Do calls fn until it succeeds, returns a permanent error, the retries
// are exhausted, or ctx is done. op prefixes every returned error.
func Do(ctx context.Context, op string, p Policy, fn func(ctx context.Context) error) error {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	attempts := 1 + max(p.Retries, 0)

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", op, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", op, ctx.Err())
			case <-time.After(base << uint(i-1)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if perm, ok := lastErr.(*PermanentError); ok {
			return fmt.Errorf("%s: non-retriable error: %w", op, perm.Err)
		}
		if p.Permanent != nil && p.Permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", op, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, lastErr)
}

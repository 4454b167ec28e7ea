package connectors

import (
	"context"
	"fmt"
	"time"
)

// Policy configures retry behavior for one connector call. Policies are
// plain values so they can be exercised in tests without any network.
type Policy struct {
	MaxAttempts int           // total attempts, including the first call
	BaseDelay   time.Duration // delay before the first retry
	MaxDelay    time.Duration // backoff cap
	Multiplier  float64       // backoff growth factor
}

// DefaultPolicy returns the retry budget applied to every external
// data-source call: 3 attempts total, exponential backoff from 4s
// capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   4 * time.Second,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// ExhaustedError reports that a call failed on every attempt of its
// retry budget. It carries the last cause.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Do executes fn under the policy. It retries on any error, sleeping
// the backoff between attempts, and stops early when ctx is done.
// After the budget is spent it returns an *ExhaustedError wrapping the
// last cause.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(p.delay(attempt - 1)):
			case <-ctx.Done():
				return &ExhaustedError{Op: op, Attempts: attempt - 1, Err: ctx.Err()}
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return &ExhaustedError{Op: op, Attempts: p.MaxAttempts, Err: lastErr}
}

// delay computes the backoff before retry number n (1-based).
func (p Policy) delay(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

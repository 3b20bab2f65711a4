package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/webclip-dev/webclip/internal/common"
)

// Policy encapsulates retry settings for transient upstream failures. It is
// immutable after construction.
type Policy struct {
	// MaxAttempts bounds total invocations, the first one included.
	MaxAttempts int
	// Delays is the wait schedule between attempts. When attempts outrun the
	// schedule the last entry is reused.
	Delays []time.Duration
	// IsRetryable classifies failures. Non-retryable failures propagate
	// immediately with zero added latency.
	IsRetryable func(error) bool
	// OnRetry observes each scheduled retry, for logs and counters. May be nil.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultPolicy returns a sensible default (4 attempts, 1s/2s/5s schedule,
// retry on the transient marker only). Callers layer provider-aware
// classification on top via IsRetryable.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		Delays:      []time.Duration{time.Second, 2 * time.Second, 5 * time.Second},
		IsRetryable: func(err error) bool { return errors.Is(err, common.ErrTransient) },
	}
}

// Delay returns the wait before the given retry (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 || len(p.Delays) == 0 {
		return 0
	}
	idx := retryCount - 1
	if idx >= len(p.Delays) {
		idx = len(p.Delays) - 1
	}
	return p.Delays[idx]
}

// Validate ensures invariants; returns an error if the policy cannot be applied.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1")
	}
	for _, d := range p.Delays {
		if d < 0 {
			return fmt.Errorf("delays cannot be negative")
		}
	}
	return nil
}

// Do invokes op under the policy. The operation must be safely repeatable;
// that is a caller contract, not enforced here. Exhausting every attempt
// returns the last failure. Waits respect ctx so cancellation is observed
// between attempts even mid-backoff.
func Do[T any](ctx context.Context, policy Policy, logger *slog.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	retryable := policy.IsRetryable
	if retryable == nil {
		retryable = func(err error) bool { return errors.Is(err, common.ErrTransient) }
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			return zero, err
		}
		if attempt == policy.MaxAttempts {
			logger.Warn("retry budget exhausted", "op", name, "attempts", attempt, "error", err)
			return zero, err
		}

		wait := policy.Delay(attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt, wait, err)
		}
		logger.Warn("transient failure, will retry", "op", name, "attempt", attempt, "wait", wait, "error", err)

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return zero, lastErr
}

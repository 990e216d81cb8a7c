package dispatch

import (
	"context"
	"time"
)

// BackoffKind selects a retry policy's delay growth, adapted from
// backend/internal/application/engine/retry_policy.go.
type BackoffKind string

const (
	BackoffConstant    BackoffKind = "constant"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy wraps Custom-action invocation with bounded retries. The
// default policy (zero value via NoRetryPolicy) performs no retries,
// preserving spec §4.G's "abandon remaining actions on error" behavior.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     BackoffKind
	BaseDelay   time.Duration
	OnRetry     func(attempt int, err error)
}

// NoRetryPolicy performs exactly one attempt.
func NoRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	switch p.Backoff {
	case BackoffLinear:
		return p.BaseDelay * time.Duration(attempt)
	case BackoffExponential:
		d := p.BaseDelay
		for i := 1; i < attempt; i++ {
			d *= 2
		}
		return d
	default:
		return p.BaseDelay
	}
}

// Run executes fn, retrying on error up to MaxAttempts times with the
// configured backoff, honoring ctx cancellation between attempts.
func (p RetryPolicy) Run(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastErr)
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay(attempt)):
		}
	}
	return lastErr
}

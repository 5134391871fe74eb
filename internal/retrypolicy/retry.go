// FILE: internal/retrypolicy/retry.go
// Package retrypolicy – StoreError retry policy (spec §7).
//
// Retry is attempted only for transient errors (connect/timeout/5xx/429/
// 408/409/425); attempts >= 1, backoff = min(backoff_max, backoff_base *
// 2^attempt). Built on the standard library: core has no concrete HTTP
// client of its own to attach a client-level retry wrapper (like
// hashicorp/go-retryablehttp) to: CandleStore/SignalStore/IndicatorStore
// are abstract interfaces whose transport is supplied by the caller, so
// the backoff/attempt-budget policy is reimplemented directly here. See
// DESIGN.md for the full justification.
package retrypolicy

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

// Policy configures bounded retry with exponential backoff.
type Policy struct {
	Attempts     int
	BackoffBase  time.Duration
	BackoffMax   time.Duration
	Sleep        func(time.Duration) // overridable for tests
}

// DefaultPolicy: 3 attempts, 200ms base backoff doubling up to a 5s cap.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, BackoffBase: 200 * time.Millisecond, BackoffMax: 5 * time.Second}
}

// Backoff returns the delay before retry attempt n (0-indexed).
func (p Policy) Backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.BackoffBase) * math.Pow(2, float64(attempt)))
	if d > p.BackoffMax {
		d = p.BackoffMax
	}
	return d
}

// Do runs fn up to p.Attempts times, sleeping Backoff(attempt) between
// retries, but only when the returned error is a retryable *model.StoreError.
// Non-retryable errors and context cancellation abort immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		var se *model.StoreError
		if !errors.As(err, &se) || !se.Retryable {
			return err
		}
		if attempt < attempts-1 {
			sleep(p.Backoff(attempt))
		}
	}
	return lastErr
}

// IsRetryableHTTPLike classifies an error string/code family as retryable
// per spec §5/§7: connect, timeout, 5xx, 429, 408, 409, 425.
func IsRetryableHTTPLike(statusCode int, connectOrTimeout bool) bool {
	if connectOrTimeout {
		return true
	}
	switch statusCode {
	case 408, 409, 425, 429:
		return true
	}
	return statusCode >= 500 && statusCode < 600
}

// FILE: internal/retrypolicy/retry_test.go
package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/backsignal/internal/model"
)

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{BackoffBase: 100 * time.Millisecond, BackoffMax: 500 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 500*time.Millisecond, p.Backoff(3), "backoff is capped at BackoffMax")
}

func TestPolicy_Do_RetriesRetryableStoreError(t *testing.T) {
	var slept []time.Duration
	p := Policy{Attempts: 3, BackoffBase: time.Millisecond, BackoffMax: time.Second,
		Sleep: func(d time.Duration) { slept = append(slept, d) }}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &model.StoreError{Op: "load", Err: errors.New("timeout"), Retryable: true}
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, slept, 2)
}

func TestPolicy_Do_NonRetryableAbortsImmediately(t *testing.T) {
	p := Policy{Attempts: 3, BackoffBase: time.Millisecond, BackoffMax: time.Second,
		Sleep: func(time.Duration) { t.Fatal("should not sleep on a non-retryable error") }}

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &model.StoreError{Op: "load", Err: errors.New("not found"), Retryable: false}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_NonStoreErrorAbortsImmediately(t *testing.T) {
	p := Policy{Attempts: 3, Sleep: func(time.Duration) {}}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("plain error")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_Do_ExhaustsAttemptsAndReturnsLastError(t *testing.T) {
	p := Policy{Attempts: 2, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond,
		Sleep: func(time.Duration) {}}
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return &model.StoreError{Op: "load", Err: errors.New("still down"), Retryable: true}
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestPolicy_Do_ContextCancelledAbortsBeforeCallingFn(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := Policy{Attempts: 3}
	calls := 0
	err := p.Do(ctx, func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestIsRetryableHTTPLike(t *testing.T) {
	assert.True(t, IsRetryableHTTPLike(0, true))
	assert.True(t, IsRetryableHTTPLike(429, false))
	assert.True(t, IsRetryableHTTPLike(503, false))
	assert.False(t, IsRetryableHTTPLike(404, false))
	assert.False(t, IsRetryableHTTPLike(400, false))
}

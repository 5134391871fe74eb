// FILE: internal/fanout/gate.go
// Package fanout – Provider I/O fan-out capacity (spec §5).
//
// Core doesn't make provider calls itself, but it exposes the capacity
// primitive a caller fanning out to independent sources should use: a
// per-source token bucket (rate_per_s, burst) with a bounded wait. A waiter
// that can't acquire a token within its timeout budget fails rather than
// blocking forever.
package fanout

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Gate bounds concurrent access to one source by rate and a wait budget.
type Gate struct {
	limiter       *rate.Limiter
	timeoutBudget time.Duration
}

// NewGate builds a Gate allowing ratePerSec sustained requests with burst
// headroom; Wait blocks at most timeoutBudget before failing.
func NewGate(ratePerSec float64, burst int, timeoutBudget time.Duration) *Gate {
	return &Gate{
		limiter:       rate.NewLimiter(rate.Limit(ratePerSec), burst),
		timeoutBudget: timeoutBudget,
	}
}

// Wait blocks until a token is available or the gate's timeout budget
// elapses, whichever comes first.
func (g *Gate) Wait(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, g.timeoutBudget)
	defer cancel()
	if err := g.limiter.Wait(waitCtx); err != nil {
		return fmt.Errorf("fanout: gate wait exceeded budget %s: %w", g.timeoutBudget, err)
	}
	return nil
}

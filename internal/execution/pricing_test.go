// FILE: internal/execution/pricing_test.go
package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/backsignal/internal/model"
)

func TestEntryExitPrice_SlippageDirection(t *testing.T) {
	assert.InDelta(t, 100.3, EntryPrice(100, model.SideLong, 0.003), 1e-9)
	assert.InDelta(t, 99.7, EntryPrice(100, model.SideShort, 0.003), 1e-9)
	assert.InDelta(t, 99.7, ExitPrice(100, model.SideLong, 0.003), 1e-9)
	assert.InDelta(t, 100.3, ExitPrice(100, model.SideShort, 0.003), 1e-9)
}

func TestNotionalAndFees(t *testing.T) {
	notional := Notional(10000, 0.25, 2)
	assert.InDelta(t, 5000, notional, 1e-9)
	assert.InDelta(t, 2, EntryFee(5000, 0.0004), 1e-9)
	assert.InDelta(t, 2, ExitFee(10, 100, 0.002), 1e-9)
}

func TestUnrealizedPnL(t *testing.T) {
	assert.InDelta(t, 50, UnrealizedPnL(model.SideLong, 100, 105, 10), 1e-9)
	assert.InDelta(t, 50, UnrealizedPnL(model.SideShort, 105, 100, 10), 1e-9)
}

// FILE: internal/execution/pricing.go
// Package execution – Entry/exit price, fee, and notional math (spec §4.5).
package execution

import "github.com/tradecore/backsignal/internal/model"

// EntryPrice applies slippage at open: buys pay up, sells receive less.
func EntryPrice(raw float64, side model.Side, slip float64) float64 {
	if side == model.SideLong {
		return raw * (1 + slip)
	}
	return raw * (1 - slip)
}

// ExitPrice applies slippage symmetric to the closing side: closing a LONG
// sells (receives less), closing a SHORT buys back (pays up).
func ExitPrice(raw float64, side model.Side, slip float64) float64 {
	if side == model.SideLong {
		return raw * (1 - slip)
	}
	return raw * (1 + slip)
}

// Notional is the dollar size committed to a new position.
func Notional(cash, positionSizePct, leverage float64) float64 {
	return cash * positionSizePct * leverage
}

// EntryFee is notional * fee_rate.
func EntryFee(notional, feeRate float64) float64 { return notional * feeRate }

// ExitFee is qty * exitPrice * fee_rate.
func ExitFee(qty, exitPrice, feeRate float64) float64 { return qty * exitPrice * feeRate }

// UnrealizedPnL marks a position to `mark`.
func UnrealizedPnL(side model.Side, entry, mark, qty float64) float64 {
	if side == model.SideLong {
		return (mark - entry) * qty
	}
	return (entry - mark) * qty
}

// FILE: internal/execution/curve.go
// Package execution – Equity curve assembly: strictly increasing
// timestamps, duplicates coalesced last-write-wins (spec invariant on the
// equity curve).
package execution

import (
	"sort"
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

func appendEquityPoint(curve []model.EquityPoint, ts time.Time, equity float64) []model.EquityPoint {
	return append(curve, model.EquityPoint{TS: ts, Equity: equity})
}

// dedupSortCurve sorts by timestamp and keeps the last value written for any
// repeated timestamp.
func dedupSortCurve(curve []model.EquityPoint) []model.EquityPoint {
	if len(curve) == 0 {
		return curve
	}
	sort.SliceStable(curve, func(i, j int) bool { return curve[i].TS.Before(curve[j].TS) })

	out := make([]model.EquityPoint, 0, len(curve))
	for _, p := range curve {
		if n := len(out); n > 0 && out[n-1].TS.Equal(p.TS) {
			out[n-1].Equity = p.Equity
			continue
		}
		out = append(out, p)
	}
	return out
}

// FILE: internal/runner/precheck.go
// Package runner – Signal-coverage precheck (spec §4.7/§4.8). Gates
// history_signal runs and feeds the walk-forward auto-fallback decision.
package runner

import (
	"time"

	"github.com/tradecore/backsignal/internal/barclock"
	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/model"
)

// dayKey gives the UTC calendar-day bucket used to count signal_days.
func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// PrecheckThresholds are the configured coverage floors.
type PrecheckThresholds struct {
	MinSignalDays        int
	MinSignalCount       int
	MinCandleCoveragePct float64
}

// PrecheckResult is the coverage measurement, independent of pass/fail.
type PrecheckResult struct {
	SignalDays        int
	SignalCount       int
	CandleCoveragePct float64
}

// Precheck measures signal and candle coverage over a window and returns a
// PrecheckError when any floor is violated. Candle coverage is checked
// regardless of mode; the signal_days/signal_count floors only apply to
// history_signal runs, since in the replay modes `events` are generated
// in-process rather than sourced from signal_history and a coverage floor
// over them would be meaningless (mirrors _collect_precheck_failures in the
// original implementation, which gates those two checks on
// `mode == history_signal`).
func Precheck(events []model.SignalEvent, bars map[string][]model.Bar, win barclock.Window,
	timeframeMinutes int, mode config.Mode, th PrecheckThresholds) (PrecheckResult, error) {

	days := map[string]bool{}
	for _, e := range events {
		days[dayKey(e.TS)] = true
	}

	expectedPerSymbol := win.Days() * 1440 / timeframeMinutes
	var totalActual, totalExpected int
	for _, series := range bars {
		totalActual += len(series)
		totalExpected += expectedPerSymbol
	}
	coverage := 100.0
	if totalExpected > 0 {
		coverage = float64(totalActual) / float64(totalExpected) * 100
	}

	res := PrecheckResult{
		SignalDays:        len(days),
		SignalCount:       len(events),
		CandleCoveragePct: coverage,
	}

	failed := res.CandleCoveragePct < th.MinCandleCoveragePct
	if mode == config.ModeHistorySignal {
		failed = failed || res.SignalDays < th.MinSignalDays || res.SignalCount < th.MinSignalCount
	}
	if failed {
		return res, &model.PrecheckError{
			SignalDays:        res.SignalDays,
			SignalCount:       res.SignalCount,
			CandleCoveragePct: res.CandleCoveragePct,
			Msg:               "signal/candle coverage below configured floor",
		}
	}
	return res, nil
}

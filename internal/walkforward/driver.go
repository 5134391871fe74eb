// FILE: internal/walkforward/driver.go
// Package walkforward – Fold execution and auto-fallback (C9, scenario S5).
//
// Each fold first tries mode=history_signal; if auto-fallback is enabled and
// the coverage precheck fails, the fold switches to offline_replay with
// thresholds relaxed to 70% of configured values (a 70-point floor on the
// percentage threshold) and a widened close_threshold, then records a
// non-empty fallback_reason.
package walkforward

import (
	"context"
	"fmt"
	"sync"

	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/reporting"
	"github.com/tradecore/backsignal/internal/runner"
	"github.com/tradecore/backsignal/internal/store"
	"github.com/tradecore/backsignal/internal/telemetry"
)

// FoldResult is one fold's recorded outcome (spec §4.8 step 4).
type FoldResult struct {
	Fold            int     `json:"fold"`
	Mode            string  `json:"mode"`
	TotalReturnPct  float64 `json:"total_return_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	Sharpe          float64 `json:"sharpe"`
	TradeCount      int     `json:"trade_count"`
	WinRatePct      float64 `json:"win_rate_pct"`
	ExcessPct       float64 `json:"excess_pct"`
	SignalCount     int     `json:"signal_count"`
	SignalDays      int     `json:"signal_days"`
	FallbackReason  string  `json:"fallback_reason,omitempty"`
	RunID           string  `json:"run_id"`
	LongThreshold   int     `json:"long_threshold"`
	ShortThreshold  int     `json:"short_threshold"`
}

// Driver runs a full walk-forward sweep by repeatedly invoking a Runner.
type Driver struct {
	Runner *runner.Runner
}

// RunFolds builds the fold windows from base and executes each one,
// applying the auto-fallback rule per fold. When base.WalkForwardParallel is
// set and every store wired into the Driver's Runner declares itself
// concurrency-safe (store.ConcurrentStore), folds fan out across goroutines
// instead of running sequentially (spec §5); each fold still writes its own
// artifact directory, so there is no shared mutable state across them.
func (d *Driver) RunFolds(ctx context.Context, base config.RunConfig) ([]FoldResult, error) {
	windows := BuildWindows(base.Start, base.End, base.TrainDays, base.TestDays, base.StepDays, base.WalkForwardMaxFolds)

	if base.WalkForwardParallel && d.storesConcurrencySafe() {
		return d.runFoldsParallel(ctx, base, windows)
	}

	results := make([]FoldResult, 0, len(windows))
	for _, w := range windows {
		fr, err := d.runFold(ctx, base, w)
		if err != nil {
			return results, err
		}
		results = append(results, fr)
		telemetry.WalkForwardFolds.WithLabelValues(fr.Mode).Inc()
	}
	return results, nil
}

// storesConcurrencySafe reports whether every store wired into the Runner
// opts into the ConcurrentStore marker. A store that doesn't implement the
// marker is treated as unsafe, not as safe-by-default.
func (d *Driver) storesConcurrencySafe() bool {
	for _, s := range []interface{}{d.Runner.Candles, d.Runner.Signals, d.Runner.Indicators} {
		cs, ok := s.(store.ConcurrentStore)
		if !ok || !cs.ConcurrencySafe() {
			return false
		}
	}
	return true
}

// runFoldsParallel executes every fold window on its own goroutine and
// collects results back into window order. The first error observed (by
// window index, not goroutine completion order) is returned, matching the
// sequential path's behavior of stopping at the first failing fold.
func (d *Driver) runFoldsParallel(ctx context.Context, base config.RunConfig, windows []Window) ([]FoldResult, error) {
	results := make([]FoldResult, len(windows))
	errs := make([]error, len(windows))

	var wg sync.WaitGroup
	wg.Add(len(windows))
	for i, w := range windows {
		go func(i int, w Window) {
			defer wg.Done()
			fr, err := d.runFold(ctx, base, w)
			results[i] = fr
			errs[i] = err
		}(i, w)
	}
	wg.Wait()

	out := make([]FoldResult, 0, len(windows))
	for i, err := range errs {
		if err != nil {
			return out, err
		}
		out = append(out, results[i])
		telemetry.WalkForwardFolds.WithLabelValues(results[i].Mode).Inc()
	}
	return out, nil
}

// runFold executes the probe-then-fallback sequence for a single window.
func (d *Driver) runFold(ctx context.Context, base config.RunConfig, w Window) (FoldResult, error) {
	fold := base
	fold.Start = w.TestStart
	fold.End = w.TestEnd
	fold.RunID = fmt.Sprintf("%s-wf%02d", base.RunID, w.Index)

	mode := fold.Mode
	if mode == "" {
		mode = config.ModeHistorySignal
	}
	fallbackReason := ""

	if mode == config.ModeHistorySignal && base.WalkForwardAutoFallback {
		probe := fold
		probe.Mode = config.ModeHistorySignal
		probe.CheckOnly = true
		probeRes, err := d.Runner.Run(ctx, probe)
		if _, isPrecheck := err.(*model.PrecheckError); isPrecheck {
			fold.Mode = config.ModeOfflineReplay
			fold.LongThreshold = relaxThreshold(base.LongThreshold)
			fold.ShortThreshold = relaxThreshold(base.ShortThreshold)
			if fold.CloseThreshold < 15 {
				fold.CloseThreshold = 15
			}
			fallbackReason = err.Error()
		} else if err == nil {
			fold.Mode = config.ModeHistorySignal
			_ = probeRes
		} else {
			return FoldResult{}, err
		}
	} else {
		fold.Mode = mode
	}

	fold.Force = true
	res, err := d.Runner.Run(ctx, fold)
	if err != nil {
		return FoldResult{}, err
	}

	return FoldResult{
		Fold:           w.Index,
		Mode:           string(fold.Mode),
		TotalReturnPct: res.Metrics.TotalReturnPct,
		MaxDrawdownPct: res.Metrics.MaxDrawdownPct,
		Sharpe:         res.Metrics.Sharpe,
		TradeCount:     res.Metrics.TradeCount,
		WinRatePct:     res.Metrics.WinRatePct,
		ExcessPct:      res.Metrics.ExcessPct,
		SignalCount:    res.Precheck.SignalCount,
		SignalDays:     res.Precheck.SignalDays,
		FallbackReason: fallbackReason,
		LongThreshold:  fold.LongThreshold,
		ShortThreshold: fold.ShortThreshold,
		RunID:          res.RunID,
	}, nil
}

// relaxThreshold lowers an open threshold to 70% of its configured value,
// floored at 70, for the offline_replay fallback (spec §4.8 step 2).
func relaxThreshold(v int) int {
	r := int(float64(v) * 0.7)
	if r < 70 {
		r = 70
	}
	return r
}

// Summary aggregates fold-level stats (spec §4.8 summary).
type Summary struct {
	MeanReturnPct      float64 `json:"mean_return_pct"`
	MedianReturnPct    float64 `json:"median_return_pct"`
	MinReturnPct       float64 `json:"min_return_pct"`
	MaxReturnPct       float64 `json:"max_return_pct"`
	PositiveFoldRatePct float64 `json:"positive_fold_rate_pct"`
	MeanDrawdownPct    float64 `json:"mean_drawdown_pct"`
	MeanExcessPct      float64 `json:"mean_excess_pct"`
	HistoryFoldCount   int     `json:"history_fold_count"`
	ReplayFoldCount    int     `json:"replay_fold_count"`
	FallbackFoldCount  int     `json:"fallback_fold_count"`
	FoldCount          int     `json:"fold_count"`
}

// Summarize computes the fold-summary stats from a completed sweep.
func Summarize(folds []FoldResult) Summary {
	s := Summary{FoldCount: len(folds)}
	if len(folds) == 0 {
		return s
	}
	returns := make([]float64, len(folds))
	var sumReturn, sumDD, sumExcess float64
	var positive int
	for i, f := range folds {
		returns[i] = f.TotalReturnPct
		sumReturn += f.TotalReturnPct
		sumDD += f.MaxDrawdownPct
		sumExcess += f.ExcessPct
		if f.TotalReturnPct > 0 {
			positive++
		}
		switch f.Mode {
		case string(config.ModeHistorySignal):
			s.HistoryFoldCount++
		case string(config.ModeOfflineReplay):
			s.ReplayFoldCount++
		}
		if f.FallbackReason != "" {
			s.FallbackFoldCount++
		}
	}
	n := float64(len(folds))
	s.MeanReturnPct = sumReturn / n
	s.MeanDrawdownPct = sumDD / n
	s.MeanExcessPct = sumExcess / n
	s.PositiveFoldRatePct = float64(positive) / n * 100
	s.MinReturnPct, s.MaxReturnPct = minMax(returns)
	s.MedianReturnPct = median(returns)
	return s
}

func minMax(vs []float64) (float64, float64) {
	lo, hi := vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func median(vs []float64) float64 {
	sorted := append([]float64(nil), vs...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SyntheticCurve composes fold returns multiplicatively from initialEquity
// and returns a single point holding the combined final equity. The point
// carries no timestamp, and no per-fold points are included.
func SyntheticCurve(folds []FoldResult, initialEquity float64) []model.EquityPoint {
	equity := initialEquity
	out := make([]model.EquityPoint, 0, len(folds)+1)
	for _, f := range folds {
		equity *= 1 + f.TotalReturnPct/100
	}
	out = append(out, model.EquityPoint{Equity: equity})
	return out
}

// SyntheticMetrics builds a metrics.json-shaped bundle for the combined
// walk-forward curve.
func SyntheticMetrics(folds []FoldResult, initialEquity float64) reporting.Metrics {
	final := initialEquity
	for _, f := range folds {
		final *= 1 + f.TotalReturnPct/100
	}
	m := reporting.Metrics{InitialEquity: initialEquity, FinalEquity: final}
	if initialEquity != 0 {
		m.TotalReturnPct = (final/initialEquity - 1) * 100
	}
	for _, f := range folds {
		m.TradeCount += f.TradeCount
	}
	return m
}

// FILE: internal/telemetry/metrics.go
// Package telemetry – Prometheus metrics for the backtest core.
//
// Exposes the gauges/counters the runner, walk-forward driver, and signal
// sources update during a run:
//   • backtest_runs_total{mode,result}        – run completions by mode/result
//   • backtest_run_stage                      – current stage indicator (0/1 per label)
//   • backtest_signals_emitted_total{source}  – signals emitted per source
//   • backtest_signals_suppressed_total{reason} – cooldown/other suppressions
//   • backtest_cooldown_blocks_total          – rule evaluations blocked by cooldown
//   • backtest_walk_forward_folds_total{mode} – folds run, split by mode/fallback
//   • backtest_equity_usd{run_id}             – last equity value observed per run
//
// Registered in init() and served by promhttp at /metrics, exactly as the
// teacher's metrics.go + main.go wire things up.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_runs_total", Help: "Backtest runs by mode and result."},
		[]string{"mode", "result"},
	)

	RunStage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "backtest_run_stage", Help: "Current stage indicator for the active run (1 = active stage)."},
		[]string{"stage"},
	)

	SignalsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_signals_emitted_total", Help: "Signals emitted, by source."},
		[]string{"source"},
	)

	SignalsSuppressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_signals_suppressed_total", Help: "Signals suppressed before emission, by reason."},
		[]string{"reason"},
	)

	CooldownBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backtest_cooldown_blocks_total", Help: "Rule evaluations blocked by cooldown."},
	)

	WalkForwardFolds = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backtest_walk_forward_folds_total", Help: "Walk-forward folds run, by resulting mode."},
		[]string{"mode"},
	)

	EquityUSD = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "backtest_equity_usd", Help: "Last observed equity value for a run."},
		[]string{"run_id"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, RunStage, SignalsEmitted, SignalsSuppressed,
		CooldownBlocks, WalkForwardFolds, EquityUSD)
}

// SetStage flips stage on and every other registered stage off, a labeled
// 0/1 series so exactly one stage reads 1 at a time.
func SetStage(active string, allStages []string) {
	for _, s := range allStages {
		if s == active {
			RunStage.WithLabelValues(s).Set(1)
		} else {
			RunStage.WithLabelValues(s).Set(0)
		}
	}
}

// FILE: internal/runner/runner.go
// Package runner – Single-backtest orchestration (C8). Writes run-state
// transitions at every stage, selects the signal source by mode, and never
// lets a best-effort state write mask the original error (spec §4.7).
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tradecore/backsignal/internal/aggregator"
	"github.com/tradecore/backsignal/internal/barclock"
	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/cooldown"
	"github.com/tradecore/backsignal/internal/execution"
	"github.com/tradecore/backsignal/internal/fanout"
	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/ratelog"
	"github.com/tradecore/backsignal/internal/reporting"
	"github.com/tradecore/backsignal/internal/retrypolicy"
	"github.com/tradecore/backsignal/internal/signalsource"
	"github.com/tradecore/backsignal/internal/store"
	"github.com/tradecore/backsignal/internal/telemetry"
)

var allStages = []string{
	string(model.StageLoadingSignals), string(model.StageLoadingIndicatorTbls), string(model.StageLoadingCandles),
	string(model.StageReplayingSignals), string(model.StageExecuting), string(model.StageWriting),
	string(model.StageRetention), string(model.StageDone),
}

// Runner wires every external collaborator a single backtest needs.
type Runner struct {
	Candles    store.CandleStore
	Signals    store.SignalStore
	Indicators store.IndicatorStore
	Artifacts  store.ArtifactSink
	RunState   store.RunStateSink
	Clock      store.Clock
	Ledger     *cooldown.Ledger
	ErrLimiter *ratelog.Limiter
	Rules      []model.Rule
	Gate       *fanout.Gate

	// RetryPolicy governs CandleStore.LoadBars retries (spec §7). The zero
	// value falls back to retrypolicy.DefaultPolicy.
	RetryPolicy retrypolicy.Policy
}

// loadBars retries a transient CandleStore failure per r.RetryPolicy.
func (r *Runner) loadBars(ctx context.Context, symbols []string, win store.Window, timeframe string) (map[string][]model.Bar, error) {
	policy := r.RetryPolicy
	if policy.Attempts == 0 {
		policy = retrypolicy.DefaultPolicy()
	}
	var bars map[string][]model.Bar
	err := policy.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		bars, innerErr = r.Candles.LoadBars(ctx, symbols, win, timeframe)
		return innerErr
	})
	return bars, err
}

// Result is what one completed (or partially completed) run produced.
type Result struct {
	RunID       string
	Bundle      store.Bundle
	Metrics     reporting.Metrics
	Precheck    PrecheckResult
	Diagnostics *signalsource.RuleReplayDiagnostics
}

// Run executes one backtest end to end per spec §4.7.
func (r *Runner) Run(ctx context.Context, cfg config.RunConfig) (Result, error) {
	runID := cfg.RunID
	if runID == "" {
		runID = defaultRunID(cfg, r.Clock.Now())
	}
	res := Result{RunID: runID}

	state := model.RunState{
		Status:    model.StatusRunning,
		RunID:     runID,
		Mode:      string(cfg.Mode),
		StartedAt: r.Clock.Now(),
		UpdatedAt: r.Clock.Now(),
	}

	win := barclock.Window{Start: cfg.Start, End: cfg.End}
	storeWin := store.Window{Start: cfg.Start, End: cfg.End}

	var events []model.SignalEvent
	var bars map[string][]model.Bar
	var diagnostics *signalsource.RuleReplayDiagnostics
	var err error

	switch cfg.Mode {
	case config.ModeHistorySignal:
		r.writeStage(ctx, &state, model.StageLoadingSignals)
		src := signalsource.NewHistorySource(r.Signals, cfg.Symbols, win, cfg.PreferredTimeframe)
		src.Gate = r.Gate
		events, err = src.Load(ctx)
		if err != nil {
			return res, r.abort(ctx, &state, model.StageLoadingSignals, err)
		}
		r.writeStage(ctx, &state, model.StageLoadingCandles)
		bars, err = r.loadBars(ctx, cfg.Symbols, storeWin, cfg.PreferredTimeframe)
		if err != nil {
			return res, r.abort(ctx, &state, model.StageLoadingCandles, err)
		}

	case config.ModeOfflineReplay:
		r.writeStage(ctx, &state, model.StageLoadingCandles)
		bars, err = r.loadBars(ctx, cfg.Symbols, storeWin, cfg.PreferredTimeframe)
		if err != nil {
			return res, r.abort(ctx, &state, model.StageLoadingCandles, err)
		}
		r.writeStage(ctx, &state, model.StageReplayingSignals)
		src := signalsource.NewSyntheticReplaySource(bars, signalsource.DefaultSyntheticConfig())
		events, err = src.Load(ctx)
		if err != nil {
			return res, r.abort(ctx, &state, model.StageReplayingSignals, err)
		}

	case config.ModeOfflineRuleReplay:
		r.writeStage(ctx, &state, model.StageLoadingIndicatorTbls)
		src := signalsource.NewRuleReplaySource(r.Indicators, r.Rules, cfg.Symbols, storeWin,
			cfg.PreferredTimeframe, r.Ledger, r.Clock)
		src.ErrLimiter = r.ErrLimiter
		src.Gate = r.Gate
		events, err = src.Load(ctx)
		if err != nil {
			return res, r.abort(ctx, &state, model.StageLoadingIndicatorTbls, err)
		}
		diagnostics = &src.Diagnostics
		r.writeStage(ctx, &state, model.StageLoadingCandles)
		bars, err = r.loadBars(ctx, cfg.Symbols, storeWin, cfg.PreferredTimeframe)
		if err != nil {
			return res, r.abort(ctx, &state, model.StageLoadingCandles, err)
		}

	default:
		return res, &model.ConfigError{Field: "mode", Msg: "runner cannot directly execute mode " + string(cfg.Mode)}
	}

	tfMinutes := cfg.BaseTimeframeMin
	if tfMinutes <= 0 {
		tfMinutes = 1
	}
	precheck, precheckErr := Precheck(events, bars, win, tfMinutes, cfg.Mode, PrecheckThresholds{
		MinSignalDays:        cfg.MinSignalDays,
		MinSignalCount:       cfg.MinSignalCount,
		MinCandleCoveragePct: cfg.MinCandleCoveragePct,
	})
	res.Precheck = precheck
	if precheckErr != nil && !cfg.Force {
		return res, precheckErr
	}
	if cfg.CheckOnly {
		return res, precheckErr
	}

	r.writeStage(ctx, &state, model.StageExecuting)
	scores := aggregator.Aggregate(events, tfMinutes)
	engine := execution.NewEngine(execution.Config{
		AllowLong: cfg.AllowLong, AllowShort: cfg.AllowShort,
		LongOpenThreshold: cfg.LongThreshold, ShortOpenThreshold: cfg.ShortThreshold, CloseThreshold: cfg.CloseThreshold,
		MinHoldMinutes: cfg.MinHoldMinutes, NeutralConfirmMinutes: cfg.NeutralConfirmMinutes,
		InitialEquity: cfg.InitialEquity, Leverage: cfg.Leverage, PositionSizePct: cfg.PositionSizePct,
		FeeRate: cfg.FeeRate(), Slippage: cfg.Slippage(),
	}, bars, scores)
	trades, curve := engine.Run()

	r.writeStage(ctx, &state, model.StageWriting)
	metrics := reporting.Compute(trades, curve, bars, cfg.InitialEquity)
	metrics = reporting.AttachSignalProfile(metrics, events)
	res.Metrics = metrics
	res.Diagnostics = diagnostics

	bundle := store.Bundle{
		Trades:   trades,
		Curve:    curve,
		Metrics:  metricsToMap(metrics),
		ReportMD: reporting.RenderMarkdown(runID, string(cfg.Mode), metrics),
	}
	if diagnostics != nil {
		bundle.Diagnostics = diagnosticsToMap(*diagnostics)
	}
	res.Bundle = bundle

	runDir := runDirFor(cfg, runID)
	if err := r.Artifacts.WriteRunArtifacts(ctx, runDir, bundle); err != nil {
		return res, r.abort(ctx, &state, model.StageWriting, err)
	}

	r.writeStage(ctx, &state, model.StageRetention)
	// Retention/latest-pointer bookkeeping is applied by the caller (CLI),
	// which knows the artifact root's filesystem layout; the runner only
	// reports the directory it wrote to.

	state.Status = model.StatusDone
	state.Stage = model.StageDone
	state.FinishedAt = r.Clock.Now()
	state.UpdatedAt = state.FinishedAt
	state.LatestRunID = runID
	_ = r.RunState.Write(ctx, state)
	telemetry.RunsTotal.WithLabelValues(string(cfg.Mode), "ok").Inc()
	if len(curve) > 0 {
		telemetry.EquityUSD.WithLabelValues(runID).Set(curve[len(curve)-1].Equity)
	}

	return res, nil
}

func (r *Runner) writeStage(ctx context.Context, state *model.RunState, stage model.Stage) {
	state.Stage = stage
	state.UpdatedAt = r.Clock.Now()
	_ = r.RunState.Write(ctx, *state)
	telemetry.SetStage(string(stage), allStages)
}

// abort marks the run-state error and re-raises as RunAborted; the
// best-effort state write never masks the original error.
func (r *Runner) abort(ctx context.Context, state *model.RunState, stage model.Stage, cause error) error {
	state.Status = model.StatusError
	state.Stage = stage
	state.Error = cause.Error()
	state.UpdatedAt = r.Clock.Now()
	state.FinishedAt = state.UpdatedAt
	_ = r.RunState.Write(ctx, *state)
	telemetry.RunsTotal.WithLabelValues(state.Mode, "error").Inc()
	return &model.RunAborted{Stage: string(stage), Err: cause}
}

func defaultRunID(cfg config.RunConfig, now time.Time) string {
	return fmt.Sprintf("%s-%s", cfg.Mode, now.Format("20060102T150405Z"))
}

func runDirFor(cfg config.RunConfig, runID string) string {
	return fmt.Sprintf("session/%s", runID)
}

func metricsToMap(m reporting.Metrics) map[string]any {
	return map[string]any{
		"total_return_pct":    m.TotalReturnPct,
		"max_drawdown_pct":    m.MaxDrawdownPct,
		"sharpe":              m.Sharpe,
		"win_rate_pct":        m.WinRatePct,
		"profit_factor":       m.ProfitFactor,
		"avg_holding_minutes": m.AvgHoldingMinutes,
		"trade_count":         m.TradeCount,
		"buy_hold_pct":        m.BuyHoldPct,
		"excess_pct":          m.ExcessPct,
		"initial_equity":      m.InitialEquity,
		"final_equity":        m.FinalEquity,
		"by_symbol":           m.BySymbol,
		"by_signal_type":      m.BySignalType,
		"by_direction":        m.ByDirection,
		"by_timeframe":        m.ByTimeframe,
	}
}

func diagnosticsToMap(d signalsource.RuleReplayDiagnostics) map[string]any {
	return map[string]any{
		"counters": d.Counters,
		"profiles": d.Profiles,
	}
}

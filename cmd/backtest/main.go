// FILE: cmd/backtest/main.go
// Package main – `backtest` CLI entrypoint.
//
// Boot sequence:
//   1) config.RegisterFlags/Parse   – parse the flag table
//   2) config.LoadFile              – load the YAML config, following
//                                     _moved_to redirects
//   3) FlagSet.Overlay               – flags win over the file
//   4) RunConfig.Validate            – fail fast on bad values
//   5) wire CSV/filesystem stores, the cooldown ledger, the Runner
//   6) start a Prometheus /metrics server
//   7) dispatch: single run | walk-forward sweep | history/rules comparison
//   8) apply retention + the `latest` pointer, set the process exit code
//
// Example:
//   backtest -config configs/btc-1h.yaml -start 2024-01-01 -end 2024-03-01
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tradecore/backsignal/internal/comparator"
	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/cooldown"
	"github.com/tradecore/backsignal/internal/fanout"
	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/ratelog"
	"github.com/tradecore/backsignal/internal/runner"
	"github.com/tradecore/backsignal/internal/store"
	"github.com/tradecore/backsignal/internal/walkforward"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := config.RegisterFlags("backtest")
	if err := fs.Parse(args); err != nil {
		log.Printf("flag parse: %v", err)
		return 1
	}
	if fs.ConfigPath == "" {
		log.Printf("config error: -config is required")
		return 1
	}

	cfg, err := config.LoadFile(fs.ConfigPath, config.Default())
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	cfg, err = fs.Overlay(cfg)
	if err != nil {
		log.Printf("config error: %v", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("%v", err)
		return 1
	}

	var rules []model.Rule
	if cfg.RulesFile != "" {
		rules, err = config.LoadRulesFile(cfg.RulesFile)
		if err != nil {
			log.Printf("%v", err)
			return 1
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: ":" + fs.MetricsPort, Handler: mux}
	go func() {
		log.Printf("serving metrics on :%s/metrics", fs.MetricsPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ledger := cooldown.NewLedger(store.NewFSCooldownStore(fs.CooldownFile))
	if err := ledger.Hydrate(ctx); err != nil {
		log.Printf("cooldown hydrate: %v", err)
		return 1
	}

	gate := fanout.NewGate(cfg.FanoutRatePerSec, cfg.FanoutBurst, time.Duration(cfg.FanoutTimeoutMs)*time.Millisecond)

	r := &runner.Runner{
		Candles:    store.NewCSVCandleStore(fs.CandlesDir),
		Signals:    store.NewCSVSignalStore(fs.SignalsDir),
		Indicators: store.NewCSVIndicatorStore(fs.IndicatorsDir),
		Artifacts:  store.NewFSArtifactSink(cfg.ArtifactRoot),
		RunState:   store.NewFSRunStateSink(filepath.Join(cfg.ArtifactRoot, "run_state.json")),
		Clock:      store.SystemClock{},
		Ledger:     ledger,
		ErrLimiter: ratelog.NewLimiter(5, 50),
		Rules:      rules,
		Gate:       gate,
	}

	exitCode := dispatch(ctx, r, cfg)

	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
	return exitCode
}

// dispatch runs the single-backtest, walk-forward, or comparator path per
// cfg.Mode/cfg.WalkForward, then applies retention and the latest pointer
// for whichever session directory the run(s) landed in.
func dispatch(ctx context.Context, r *runner.Runner, cfg config.RunConfig) int {
	sessionDir := filepath.Join(cfg.ArtifactRoot, "session")

	switch {
	case cfg.WalkForward:
		drv := &walkforward.Driver{Runner: r}
		folds, err := drv.RunFolds(ctx, cfg)
		if err != nil {
			log.Printf("walk-forward: %v", err)
			return exitCodeFor(err)
		}
		summary := walkforward.Summarize(folds)
		if err := writeWalkForwardArtifacts(cfg, folds, summary); err != nil {
			log.Printf("walk-forward artifacts: %v", err)
			return 1
		}
		if len(folds) > 0 {
			finalizeSession(sessionDir, folds[len(folds)-1].RunID, cfg.RetentionKeep)
		}
		return 0

	case cfg.Mode == config.ModeCompareHistoryRule:
		cmp := &comparator.Comparator{Runner: r, TopN: 10}
		sum, err := cmp.Run(ctx, cfg)
		if err != nil {
			log.Printf("compare: %v", err)
			return exitCodeFor(err)
		}
		if err := writeComparatorArtifacts(cfg, sum); err != nil {
			log.Printf("compare artifacts: %v", err)
			return 1
		}
		finalizeSession(sessionDir, sum.RulesRunID, cfg.RetentionKeep)
		return 0

	default:
		res, err := r.Run(ctx, cfg)
		if err != nil {
			log.Printf("run: %v", err)
			return exitCodeFor(err)
		}
		if cfg.CheckOnly {
			log.Printf("precheck ok: signal_days=%d signal_count=%d candle_coverage_pct=%.2f",
				res.Precheck.SignalDays, res.Precheck.SignalCount, res.Precheck.CandleCoveragePct)
			return 0
		}
		finalizeSession(sessionDir, res.RunID, cfg.RetentionKeep)
		return 0
	}
}

// exitCodeFor maps the error taxonomy to the CLI exit codes (spec §7):
// 2 for a precheck failure that was not overridden with --force, 1 otherwise.
func exitCodeFor(err error) int {
	var precheckErr *model.PrecheckError
	if errors.As(err, &precheckErr) {
		return 2
	}
	return 1
}

func finalizeSession(sessionDir, runID string, keep int) {
	if err := store.UpdateLatest(sessionDir, runID); err != nil {
		log.Printf("update latest: %v", err)
	}
	if err := store.EnforceRetention(sessionDir, keep); err != nil {
		log.Printf("enforce retention: %v", err)
	}
}

func writeWalkForwardArtifacts(cfg config.RunConfig, folds []walkforward.FoldResult, summary walkforward.Summary) error {
	dir := filepath.Join(cfg.ArtifactRoot, "session", cfg.RunID+"-walkforward")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	rows := [][]string{{"fold", "mode", "run_id", "total_return_pct", "max_drawdown_pct", "sharpe",
		"trade_count", "win_rate_pct", "excess_pct", "signal_count", "signal_days", "fallback_reason",
		"long_threshold", "short_threshold"}}
	for _, f := range folds {
		rows = append(rows, []string{
			fmt.Sprintf("%d", f.Fold), f.Mode, f.RunID,
			fmt.Sprintf("%.4f", f.TotalReturnPct), fmt.Sprintf("%.4f", f.MaxDrawdownPct), fmt.Sprintf("%.4f", f.Sharpe),
			fmt.Sprintf("%d", f.TradeCount), fmt.Sprintf("%.4f", f.WinRatePct), fmt.Sprintf("%.4f", f.ExcessPct),
			fmt.Sprintf("%d", f.SignalCount), fmt.Sprintf("%d", f.SignalDays), f.FallbackReason,
			fmt.Sprintf("%d", f.LongThreshold), fmt.Sprintf("%d", f.ShortThreshold),
		})
	}
	if err := store.WriteCSVAtomic(filepath.Join(dir, "walk_forward_folds.csv"), rows); err != nil {
		return err
	}
	if err := store.WriteJSONAtomic(filepath.Join(dir, "walk_forward_summary.json"), summary); err != nil {
		return err
	}

	curve := walkforward.SyntheticCurve(folds, cfg.InitialEquity)
	metrics := walkforward.SyntheticMetrics(folds, cfg.InitialEquity)
	if err := store.WriteJSONAtomic(filepath.Join(dir, "metrics.json"), metrics); err != nil {
		return err
	}
	curveRows := [][]string{{"timestamp", "equity"}}
	for _, p := range curve {
		curveRows = append(curveRows, []string{p.TS.UTC().Format("2006-01-02 15:04:05"), fmt.Sprintf("%.8f", p.Equity)})
	}
	return store.WriteCSVAtomic(filepath.Join(dir, "equity_curve.csv"), curveRows)
}

func writeComparatorArtifacts(cfg config.RunConfig, sum comparator.Summary) error {
	dir := filepath.Join(cfg.ArtifactRoot, "session", cfg.RunID+"-compare")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := store.WriteJSONAtomic(filepath.Join(dir, "comparison.json"), sum); err != nil {
		return err
	}
	md := comparator.RenderMarkdown(sum)
	return store.WriteFileAtomic(filepath.Join(dir, "comparison.md"), []byte(md))
}


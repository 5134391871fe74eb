// FILE: internal/config/flags.go
// Package config – CLI flag overlay on top of the file-loaded RunConfig
// (spec §6 flag table). Flags always win over the config file.
package config

import (
	"flag"
	"strings"
	"time"
)

// FlagSet mirrors the `backtest` command's flag table. Fields are plain
// values bound by flag.FlagSet; Overlay tells "was this flag actually
// passed" apart from "default value happens to match" through sentinel
// defaults and, for boolean flags, flag.FlagSet.Visit.
type FlagSet struct {
	ConfigPath string

	start, end   string
	symbols      string
	mode         string
	runID        string
	feeBps       float64
	slippageBps  float64
	allowLong    bool
	allowShort   bool
	minHold      int
	neutralConf  int
	initialEq    float64
	leverage     float64
	posSizePct   float64
	longThr      int
	shortThr     int
	closeThr     int
	walkForward  bool
	wfMaxFolds   int
	wfAutoFallback bool
	wfParallel   bool
	minSignalDays  int
	minSignalCount int
	minCoveragePct float64
	force        bool
	checkOnly    bool

	// Data-source/runtime flags: not part of RunConfig, consumed directly by
	// cmd/backtest to wire the CSV/filesystem store implementations.
	CandlesDir    string
	SignalsDir    string
	IndicatorsDir string
	CooldownFile  string
	MetricsPort   string
	RulesFile     string

	fs *flag.FlagSet
}

// RegisterFlags builds the flag.FlagSet for the `backtest` subcommand.
func RegisterFlags(name string) *FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	f := &FlagSet{fs: fs}

	fs.StringVar(&f.ConfigPath, "config", "", "path to the YAML config file (required)")
	fs.StringVar(&f.start, "start", "", "window start, RFC3339 or 2006-01-02")
	fs.StringVar(&f.end, "end", "", "window end, RFC3339 or 2006-01-02")
	fs.StringVar(&f.symbols, "symbols", "", "comma-separated symbol list")
	fs.StringVar(&f.mode, "mode", "", "history_signal|offline_replay|offline_rule_replay|compare_history_rule")
	fs.StringVar(&f.runID, "run-id", "", "override the generated run id")
	fs.Float64Var(&f.feeBps, "fee-bps", -1, "fee in basis points")
	fs.Float64Var(&f.slippageBps, "slippage-bps", -1, "slippage in basis points")
	fs.BoolVar(&f.allowLong, "allow-long", true, "allow long entries")
	fs.BoolVar(&f.allowShort, "allow-short", true, "allow short entries")
	fs.IntVar(&f.minHold, "min-hold-minutes", -1, "minimum minutes to hold before a neutral close")
	fs.IntVar(&f.neutralConf, "neutral-confirm-minutes", -1, "consecutive neutral buckets required to close")
	fs.Float64Var(&f.initialEq, "initial-equity", -1, "starting cash")
	fs.Float64Var(&f.leverage, "leverage", -1, "leverage multiplier")
	fs.Float64Var(&f.posSizePct, "position-size-pct", -1, "fraction of cash committed per entry")
	fs.IntVar(&f.longThr, "long-threshold", -1, "score needed to open long")
	fs.IntVar(&f.shortThr, "short-threshold", -1, "score needed to open short")
	fs.IntVar(&f.closeThr, "close-threshold", -1, "|score| below which neutral-close counting starts")
	fs.BoolVar(&f.walkForward, "walk-forward", false, "run as a walk-forward sweep instead of one backtest")
	fs.IntVar(&f.wfMaxFolds, "walk-forward-max-folds", -1, "cap the number of folds")
	fs.BoolVar(&f.wfAutoFallback, "walk-forward-auto-fallback", true, "auto-fallback a sparse fold to offline_replay")
	fs.BoolVar(&f.wfParallel, "walk-forward-parallel", false, "fan folds out across goroutines when every wired store is concurrency-safe")
	fs.IntVar(&f.minSignalDays, "min-signal-days", -1, "precheck floor: distinct days with a signal")
	fs.IntVar(&f.minSignalCount, "min-signal-count", -1, "precheck floor: total signal count")
	fs.Float64Var(&f.minCoveragePct, "min-candle-coverage-pct", -1, "precheck floor: pct of expected bars present")
	fs.BoolVar(&f.force, "force", false, "run despite a failed precheck")
	fs.BoolVar(&f.checkOnly, "check-only", false, "run the precheck only, then exit")

	fs.StringVar(&f.CandlesDir, "candles-dir", "data/candles", "directory of <symbol>.csv candle files")
	fs.StringVar(&f.SignalsDir, "signals-dir", "data/signals", "directory of <symbol>.csv signal-history files")
	fs.StringVar(&f.IndicatorsDir, "indicators-dir", "data/indicators", "directory of <table>.csv indicator files")
	fs.StringVar(&f.CooldownFile, "cooldown-file", "artifacts/backtest/cooldown.json", "cooldown ledger JSON file")
	fs.StringVar(&f.MetricsPort, "metrics-port", "9300", "Prometheus /metrics port")
	fs.StringVar(&f.RulesFile, "rules-file", "", "rule-set YAML file (required for offline_rule_replay/compare_history_rule)")

	return f
}

func (f *FlagSet) Parse(args []string) error { return f.fs.Parse(args) }

// Overlay applies every flag that was explicitly set onto cfg. Non-boolean
// flags default to sentinel values (-1, "") so "not passed" is
// distinguishable from "zero"; boolean flags apply only when Visit reports
// them as set.
func (f *FlagSet) Overlay(cfg RunConfig) (RunConfig, error) {
	explicit := map[string]bool{}
	if f.fs != nil {
		f.fs.Visit(func(fl *flag.Flag) { explicit[fl.Name] = true })
	}
	applyBool := func(name string, dst *bool, v bool) {
		if explicit[name] {
			*dst = v
		}
	}
	if f.start != "" {
		t, err := parseDate(f.start)
		if err != nil {
			return cfg, err
		}
		cfg.Start = t
	}
	if f.end != "" {
		t, err := parseDate(f.end)
		if err != nil {
			return cfg, err
		}
		cfg.End = t
	}
	if f.symbols != "" {
		cfg.Symbols = splitSymbols(f.symbols)
	}
	if f.mode != "" {
		cfg.Mode = Mode(f.mode)
	}
	if f.runID != "" {
		cfg.RunID = f.runID
	}
	if f.feeBps >= 0 {
		cfg.FeeBps = f.feeBps
	}
	if f.slippageBps >= 0 {
		cfg.SlippageBps = f.slippageBps
	}
	applyBool("allow-long", &cfg.AllowLong, f.allowLong)
	applyBool("allow-short", &cfg.AllowShort, f.allowShort)
	if f.minHold >= 0 {
		cfg.MinHoldMinutes = f.minHold
	}
	if f.neutralConf >= 0 {
		cfg.NeutralConfirmMinutes = f.neutralConf
	}
	if f.initialEq >= 0 {
		cfg.InitialEquity = f.initialEq
	}
	if f.leverage >= 0 {
		cfg.Leverage = f.leverage
	}
	if f.posSizePct >= 0 {
		cfg.PositionSizePct = f.posSizePct
	}
	if f.longThr >= 0 {
		cfg.LongThreshold = f.longThr
	}
	if f.shortThr >= 0 {
		cfg.ShortThreshold = f.shortThr
	}
	if f.closeThr >= 0 {
		cfg.CloseThreshold = f.closeThr
	}
	applyBool("walk-forward", &cfg.WalkForward, f.walkForward)
	if f.wfMaxFolds >= 0 {
		cfg.WalkForwardMaxFolds = f.wfMaxFolds
	}
	applyBool("walk-forward-auto-fallback", &cfg.WalkForwardAutoFallback, f.wfAutoFallback)
	applyBool("walk-forward-parallel", &cfg.WalkForwardParallel, f.wfParallel)
	if f.minSignalDays >= 0 {
		cfg.MinSignalDays = f.minSignalDays
	}
	if f.minSignalCount >= 0 {
		cfg.MinSignalCount = f.minSignalCount
	}
	if f.minCoveragePct >= 0 {
		cfg.MinCandleCoveragePct = f.minCoveragePct
	}
	applyBool("force", &cfg.Force, f.force)
	applyBool("check-only", &cfg.CheckOnly, f.checkOnly)
	if f.RulesFile != "" {
		cfg.RulesFile = f.RulesFile
	}
	return cfg, nil
}

func splitSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

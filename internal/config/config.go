// FILE: internal/config/config.go
// Package config – Run configuration: nested YAML file + CLI flag overlay
// (spec §6). Validates into internal/model.ConfigError; never panics on bad
// input.
package config

import (
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

// Mode selects which signal source feeds a run.
type Mode string

const (
	ModeHistorySignal    Mode = "history_signal"
	ModeOfflineReplay    Mode = "offline_replay"
	ModeOfflineRuleReplay Mode = "offline_rule_replay"
	ModeCompareHistoryRule Mode = "compare_history_rule"
)

// RunConfig is the full set of knobs a `backtest` invocation accepts,
// whether sourced from the config file or a CLI flag override.
type RunConfig struct {
	Start   time.Time
	End     time.Time
	Symbols []string
	Mode    Mode
	RunID   string

	FeeBps       float64
	SlippageBps  float64
	AllowLong    bool
	AllowShort   bool

	MinHoldMinutes        int
	NeutralConfirmMinutes int

	InitialEquity   float64
	Leverage        float64
	PositionSizePct float64

	LongThreshold  int
	ShortThreshold int
	CloseThreshold int

	WalkForward             bool
	WalkForwardMaxFolds     int
	WalkForwardAutoFallback bool
	WalkForwardParallel     bool
	TrainDays               int
	TestDays                int
	StepDays                int

	MinSignalDays         int
	MinSignalCount        int
	MinCandleCoveragePct  float64

	Force     bool
	CheckOnly bool

	PreferredTimeframe string
	BaseTimeframeMin    int

	ArtifactRoot   string
	RetentionKeep  int

	RulesFile string

	FanoutRatePerSec  float64
	FanoutBurst       int
	FanoutTimeoutMs   int
}

// Default returns conservative defaults matching the seed scenarios and
// the execution engine's own DefaultConfig.
func Default() RunConfig {
	return RunConfig{
		Mode:                    ModeHistorySignal,
		FeeBps:                  4,
		SlippageBps:             3,
		AllowLong:               true,
		AllowShort:              true,
		MinHoldMinutes:          5,
		NeutralConfirmMinutes:   3,
		InitialEquity:           10000,
		Leverage:                1,
		PositionSizePct:         0.25,
		LongThreshold:           70,
		ShortThreshold:          70,
		CloseThreshold:          20,
		WalkForwardMaxFolds:     0,
		WalkForwardAutoFallback: true,
		TrainDays:               45,
		TestDays:                15,
		StepDays:                15,
		MinSignalDays:           20,
		MinSignalCount:          50,
		MinCandleCoveragePct:    90,
		PreferredTimeframe:      "1m",
		BaseTimeframeMin:        1,
		ArtifactRoot:            "artifacts/backtest",
		RetentionKeep:           20,
		FanoutRatePerSec:        8,
		FanoutBurst:             4,
		FanoutTimeoutMs:         2000,
	}
}

// Validate fails fast on invalid ranges/symbols/thresholds (spec §7
// ConfigError, exit code 1).
func (c RunConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return &model.ConfigError{Field: "symbols", Msg: "at least one symbol is required"}
	}
	if !c.End.After(c.Start) {
		return &model.ConfigError{Field: "start/end", Msg: "end must be after start"}
	}
	switch c.Mode {
	case ModeHistorySignal, ModeOfflineReplay, ModeOfflineRuleReplay, ModeCompareHistoryRule:
	default:
		return &model.ConfigError{Field: "mode", Msg: "unrecognized mode: " + string(c.Mode)}
	}
	if c.LongThreshold <= 0 || c.ShortThreshold <= 0 {
		return &model.ConfigError{Field: "long_threshold/short_threshold", Msg: "thresholds must be positive"}
	}
	if c.CloseThreshold < 0 || c.CloseThreshold >= c.LongThreshold {
		return &model.ConfigError{Field: "close_threshold", Msg: "close_threshold must be in [0, long_threshold)"}
	}
	if c.InitialEquity <= 0 {
		return &model.ConfigError{Field: "initial_equity", Msg: "must be positive"}
	}
	if c.PositionSizePct <= 0 || c.PositionSizePct > 1 {
		return &model.ConfigError{Field: "position_size_pct", Msg: "must be in (0,1]"}
	}
	if c.Leverage <= 0 {
		return &model.ConfigError{Field: "leverage", Msg: "must be positive"}
	}
	if !c.AllowLong && !c.AllowShort {
		return &model.ConfigError{Field: "allow_long/allow_short", Msg: "at least one side must be enabled"}
	}
	return nil
}

// FeeRate and Slippage convert the CLI's basis-point knobs to fractions
// consumed by internal/execution.Config.
func (c RunConfig) FeeRate() float64  { return c.FeeBps / 10000.0 }
func (c RunConfig) Slippage() float64 { return c.SlippageBps / 10000.0 }

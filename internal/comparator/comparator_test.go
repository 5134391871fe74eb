// FILE: internal/comparator/comparator_test.go
package comparator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/cooldown"
	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/reporting"
	"github.com/tradecore/backsignal/internal/runner"
	"github.com/tradecore/backsignal/internal/signalsource"
	"github.com/tradecore/backsignal/internal/store"
)

func counters(entries ...reporting.CounterEntry) []reporting.CounterEntry { return entries }

func TestDeltaTopN_RanksByAbsoluteDeltaDescending(t *testing.T) {
	a := counters(reporting.CounterEntry{Key: "x", Count: 10}, reporting.CounterEntry{Key: "y", Count: 1})
	b := counters(reporting.CounterEntry{Key: "x", Count: 1}, reporting.CounterEntry{Key: "z", Count: 5})

	out := deltaTopN(a, b, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "x", out[0].Key)
	assert.Equal(t, 9, out[0].Delta)
}

func TestDeltaTopN_TruncatesToTopN(t *testing.T) {
	a := counters(reporting.CounterEntry{Key: "a", Count: 5}, reporting.CounterEntry{Key: "b", Count: 4}, reporting.CounterEntry{Key: "c", Count: 3})
	out := deltaTopN(a, nil, 2)
	assert.Len(t, out, 2)
}

func TestJaccard_ComputesOverlapAndExclusiveCounts(t *testing.T) {
	a := map[string]bool{"x": true, "y": true}
	b := map[string]bool{"y": true, "z": true}
	ov := jaccard(a, b)
	assert.InDelta(t, 1.0/3.0, ov.Jaccard, 1e-9)
	assert.Equal(t, 1, ov.HistoryOnly)
	assert.Equal(t, 1, ov.RulesOnly)
	assert.Equal(t, 1, ov.Intersection)
	assert.Equal(t, 50.0, ov.HistoryCoveragePct)
	assert.Equal(t, 50.0, ov.RuleCoveragePct)
}

func TestJaccard_EmptySetsYieldZero(t *testing.T) {
	ov := jaccard(map[string]bool{}, map[string]bool{})
	assert.Equal(t, 0.0, ov.Jaccard)
	assert.Equal(t, 0.0, ov.HistoryCoveragePct)
	assert.Equal(t, 0.0, ov.RuleCoveragePct)
}

func TestClassifyMissing_NoDiagnosticsReturnsUnknown(t *testing.T) {
	present := map[string]bool{"rsi_cross": true}
	absent := map[string]bool{}
	out := classifyMissing(present, absent, nil, 10)
	require.Len(t, out, 1)
	assert.Equal(t, "unknown", out[0].PrimaryBlockReason)
}

func TestClassifyMissing_NotEvaluatedWhenCounterAbsent(t *testing.T) {
	present := map[string]bool{"rsi_cross": true}
	diag := &signalsource.RuleReplayDiagnostics{Counters: map[string]signalsource.RuleCounters{}}
	out := classifyMissing(present, map[string]bool{}, diag, 10)
	require.Len(t, out, 1)
	assert.Equal(t, "not_evaluated", out[0].PrimaryBlockReason)
}

func TestClassifyMissing_LargestBucketWins(t *testing.T) {
	present := map[string]bool{"rsi_cross": true}
	diag := &signalsource.RuleReplayDiagnostics{
		Counters: map[string]signalsource.RuleCounters{
			"rsi_cross": {Evaluated: 10, ConditionFailed: 8, VolumeFiltered: 1},
		},
		Profiles: map[string]signalsource.TimeframeProfile{"rsi_cross": {Overlap: []string{"1m"}}},
	}
	out := classifyMissing(present, map[string]bool{}, diag, 10)
	require.Len(t, out, 1)
	assert.Equal(t, "condition_failed", out[0].PrimaryBlockReason)
}

func TestClassifyMissing_TimeframeNoDataWhenNoOverlap(t *testing.T) {
	present := map[string]bool{"rsi_cross": true}
	diag := &signalsource.RuleReplayDiagnostics{
		Counters: map[string]signalsource.RuleCounters{
			"rsi_cross": {Evaluated: 5, TimeframeFiltered: 5},
		},
		Profiles: map[string]signalsource.TimeframeProfile{"rsi_cross": {}},
	}
	out := classifyMissing(present, map[string]bool{}, diag, 10)
	require.Len(t, out, 1)
	assert.Equal(t, "timeframe_no_data", out[0].PrimaryBlockReason)
}

func TestRenderMarkdown_IncludesMetricsDeltaAndAlignmentSections(t *testing.T) {
	sum := Summary{
		HistoryRunID:   "r-history",
		RulesRunID:     "r-rules",
		HistoryMetrics: reporting.Metrics{TotalReturnPct: 5, TradeCount: 3},
		RulesMetrics:   reporting.Metrics{TotalReturnPct: 8, TradeCount: 4},
		RuleOverlap:    RuleOverlap{Jaccard: 0.5, HistoryCoveragePct: 60, RuleCoveragePct: 40},
		SignalTypeDeltas: []DeltaEntry{{Key: "rsi_cross", HistoryCount: 3, RulesCount: 1, Delta: 2}},
		MissingHistoryRulesTop: []MissingRule{{Name: "macd_cross", PrimaryBlockReason: "condition_failed"}},
	}

	md := RenderMarkdown(sum)
	assert.Contains(t, md, "# Backtest Mode Comparison")
	assert.Contains(t, md, "r-history")
	assert.Contains(t, md, "r-rules")
	assert.Contains(t, md, "## Metrics")
	assert.Contains(t, md, "## Delta (rule - history)")
	assert.Contains(t, md, "## Rule Alignment")
	assert.Contains(t, md, "Jaccard: `50.00%`")
	assert.Contains(t, md, "macd_cross")
	assert.Contains(t, md, "rsi_cross")
}

func TestRenderMarkdown_EmptyDeltaListsRenderPlaceholderRows(t *testing.T) {
	md := RenderMarkdown(Summary{})
	assert.Contains(t, md, "| -- | -- |")
	assert.Contains(t, md, "| -- | -- | -- | -- |")
}

// --- integration: Comparator.Run over a real Runner ---

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

type noopArtifactSink struct{}

func (noopArtifactSink) WriteRunArtifacts(context.Context, string, store.Bundle) error { return nil }

type noopRunStateSink struct{}

func (noopRunStateSink) Write(context.Context, model.RunState) error { return nil }

func TestComparator_RunProducesSiblingRunsAndOverlap(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	signals := store.NewMemSignalStore()
	signals.Add(model.SignalEvent{TS: base, Symbol: "BTCUSD", Direction: model.DirBuy, Strength: 80})

	indicators := store.NewMemIndicatorStore()
	indicators.Add("rsi", model.Row{Symbol: "BTCUSD", Timeframe: "1m", TS: 0, Fields: map[string]string{"value": "60"}})
	indicators.Add("rsi", model.Row{Symbol: "BTCUSD", Timeframe: "1m", TS: 60, Fields: map[string]string{"value": "80"}})

	candles := store.NewMemCandleStore()
	for i := 0; i < 5; i++ {
		candles.Add(model.Bar{Symbol: "BTCUSD", TS: base.Add(time.Duration(i) * time.Minute), Open: 100, High: 101, Low: 99, Close: 100, Volume: 10})
	}

	rule := model.Rule{
		Name: "rsi_cross", Table: "rsi", Direction: model.DirBuy, Strength: 70,
		Timeframes: []string{"1m"}, Enabled: true,
		ConditionKind: model.ConditionCfgKind{Kind: model.CondThresholdCrossUp, Cfg: model.ConditionCfg{Field: "value", Threshold: 70}},
	}

	r := &runner.Runner{
		Candles:    candles,
		Signals:    signals,
		Indicators: indicators,
		Artifacts:  noopArtifactSink{},
		RunState:   noopRunStateSink{},
		Clock:      fixedClock{t: base},
		Ledger:     cooldown.NewLedger(store.NewMemCooldownStore()),
		Rules:      []model.Rule{rule},
	}

	cfg := config.Default()
	cfg.Symbols = []string{"BTCUSD"}
	cfg.Start = base
	cfg.End = base.AddDate(0, 0, 1)
	cfg.RunID = "cmp-test"
	cfg.Force = true

	cmp := &Comparator{Runner: r}
	sum, err := cmp.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "cmp-test-history", sum.HistoryRunID)
	assert.Equal(t, "cmp-test-rules", sum.RulesRunID)
	assert.NotNil(t, sum.SignalTypeDeltas)
}

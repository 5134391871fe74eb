// FILE: internal/reporting/report_test.go
package reporting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown_IncludesSummaryTable(t *testing.T) {
	m := Metrics{
		TotalReturnPct: 12.5,
		BuyHoldPct:     8.0,
		ExcessPct:      4.5,
		TradeCount:     3,
		InitialEquity:  10000,
		FinalEquity:    11250,
	}
	out := RenderMarkdown("run-001", "history_signal", m)
	assert.Contains(t, out, "# Backtest Report: run-001")
	assert.Contains(t, out, "Mode: `history_signal`")
	assert.Contains(t, out, "12.5000%")
	assert.Contains(t, out, "| Trade count | 3 |")
}

func TestRenderMarkdown_OmitsEmptyBreakdownSections(t *testing.T) {
	out := RenderMarkdown("run-002", "offline_rule_replay", Metrics{})
	assert.NotContains(t, out, "Signal type breakdown")
	assert.NotContains(t, out, "Per-symbol contribution")
}

func TestRenderMarkdown_IncludesPerSymbolAndCounterTables(t *testing.T) {
	m := Metrics{
		BySymbol:     []SymbolContribution{{Symbol: "BTCUSD", PnLNet: 100, TradeCount: 2, WinRatePct: 50}},
		BySignalType: []CounterEntry{{Key: "rsi_cross", Count: 4}},
		ByDirection:  []CounterEntry{{Key: "BUY", Count: 4}},
		ByTimeframe:  []CounterEntry{{Key: "1m", Count: 4}},
	}
	out := RenderMarkdown("run-003", "history_signal", m)
	assert.Contains(t, out, "Per-symbol contribution")
	assert.Contains(t, out, "| BTCUSD | 100.0000 | 2 | 50.00% |")
	assert.Contains(t, out, "Signal type breakdown")
	assert.Contains(t, out, "Direction breakdown")
	assert.Contains(t, out, "Timeframe breakdown")
}

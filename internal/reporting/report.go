// FILE: internal/reporting/report.go
// Package reporting – Renders report.md from a computed Metrics bundle.
package reporting

import (
	"fmt"
	"strings"
)

// RenderMarkdown produces the human-readable report.md contents for one run.
func RenderMarkdown(runID, mode string, m Metrics) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Backtest Report: %s\n\n", runID)
	fmt.Fprintf(&b, "Mode: `%s`\n\n", mode)

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Total return | %.4f%% |\n", m.TotalReturnPct)
	fmt.Fprintf(&b, "| Buy & hold | %.4f%% |\n", m.BuyHoldPct)
	fmt.Fprintf(&b, "| Excess | %.4f%% |\n", m.ExcessPct)
	fmt.Fprintf(&b, "| Max drawdown | %.4f%% |\n", m.MaxDrawdownPct)
	fmt.Fprintf(&b, "| Sharpe | %.4f |\n", m.Sharpe)
	fmt.Fprintf(&b, "| Win rate | %.2f%% |\n", m.WinRatePct)
	fmt.Fprintf(&b, "| Profit factor | %.4f |\n", m.ProfitFactor)
	fmt.Fprintf(&b, "| Avg holding (min) | %.2f |\n", m.AvgHoldingMinutes)
	fmt.Fprintf(&b, "| Trade count | %d |\n", m.TradeCount)
	fmt.Fprintf(&b, "| Initial equity | %.2f |\n", m.InitialEquity)
	fmt.Fprintf(&b, "| Final equity | %.2f |\n\n", m.FinalEquity)

	if len(m.BySymbol) > 0 {
		fmt.Fprintf(&b, "## Per-symbol contribution\n\n")
		fmt.Fprintf(&b, "| Symbol | PnL net | Trades | Win rate | Avg hold (min) |\n|---|---|---|---|---|\n")
		for _, sc := range m.BySymbol {
			fmt.Fprintf(&b, "| %s | %.4f | %d | %.2f%% | %.2f |\n",
				sc.Symbol, sc.PnLNet, sc.TradeCount, sc.WinRatePct, sc.AvgHoldingMinutes)
		}
		b.WriteString("\n")
	}

	renderCounterTable(&b, "Signal type breakdown", m.BySignalType)
	renderCounterTable(&b, "Direction breakdown", m.ByDirection)
	renderCounterTable(&b, "Timeframe breakdown", m.ByTimeframe)

	return b.String()
}

func renderCounterTable(b *strings.Builder, title string, entries []CounterEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n\n", title)
	fmt.Fprintf(b, "| Key | Count |\n|---|---|\n")
	for _, e := range entries {
		fmt.Fprintf(b, "| %s | %d |\n", e.Key, e.Count)
	}
	b.WriteString("\n")
}

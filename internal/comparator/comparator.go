// FILE: internal/comparator/comparator.go
// Package comparator – Side-by-side mode comparison (C10, scenario S6).
//
// Runs the identical window twice, once as history_signal and once as
// offline_rule_replay, under sibling run_ids {base}-history/{base}-rules,
// then diffs their metrics and signal profiles.
package comparator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/reporting"
	"github.com/tradecore/backsignal/internal/runner"
	"github.com/tradecore/backsignal/internal/signalsource"
)

// DeltaEntry is one (key, history_count, rules_count, delta) row.
type DeltaEntry struct {
	Key            string `json:"key"`
	HistoryCount   int    `json:"history_count"`
	RulesCount     int    `json:"rules_count"`
	Delta          int    `json:"delta"`
}

// MissingRule names a signal_type present in one stream but absent in the
// other, with a root-cause classification when diagnostics are available.
type MissingRule struct {
	Name              string `json:"name"`
	PrimaryBlockReason string `json:"primary_block_reason"`
}

// RuleOverlap is the Jaccard overlap between the two runs' rule-name sets,
// plus each side's coverage ratio: what fraction of that side's own rule
// set is also present on the other side.
type RuleOverlap struct {
	Jaccard            float64 `json:"jaccard"`
	HistoryOnly        int     `json:"history_only"`
	RulesOnly          int     `json:"rules_only"`
	Intersection       int     `json:"intersection"`
	HistoryCoveragePct float64 `json:"history_coverage_pct"`
	RuleCoveragePct    float64 `json:"rule_coverage_pct"`
}

// Summary is the full comparison.json payload.
type Summary struct {
	HistoryRunID string            `json:"history_run_id"`
	RulesRunID   string            `json:"rules_run_id"`
	HistoryMetrics reporting.Metrics `json:"history_metrics"`
	RulesMetrics   reporting.Metrics `json:"rules_metrics"`

	SignalTypeDeltas []DeltaEntry `json:"signal_type_deltas"`
	TimeframeDeltas  []DeltaEntry `json:"timeframe_deltas"`
	DirectionDeltas  []DeltaEntry `json:"direction_deltas"`

	MissingHistoryRulesTop []MissingRule `json:"missing_history_rules_top"`
	NewRuleTypesTop        []MissingRule `json:"new_rule_types_top"`

	RuleOverlap RuleOverlap `json:"rule_overlap"`
}

// Comparator runs both modes through a shared Runner.
type Comparator struct {
	Runner *runner.Runner
	TopN   int
}

// Run executes both modes and builds the comparison summary. A fold-level
// failure on either side is fatal: no partial summary is returned.
func (c *Comparator) Run(ctx context.Context, base config.RunConfig) (Summary, error) {
	topN := c.TopN
	if topN <= 0 {
		topN = 10
	}

	histCfg := base
	histCfg.Mode = config.ModeHistorySignal
	histCfg.RunID = fmt.Sprintf("%s-history", base.RunID)
	histRes, err := c.Runner.Run(ctx, histCfg)
	if err != nil {
		return Summary{}, err
	}

	rulesCfg := base
	rulesCfg.Mode = config.ModeOfflineRuleReplay
	rulesCfg.RunID = fmt.Sprintf("%s-rules", base.RunID)
	rulesRes, err := c.Runner.Run(ctx, rulesCfg)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		HistoryRunID:   histCfg.RunID,
		RulesRunID:     rulesCfg.RunID,
		HistoryMetrics: histRes.Metrics,
		RulesMetrics:   rulesRes.Metrics,
	}

	sum.SignalTypeDeltas = deltaTopN(histRes.Metrics.BySignalType, rulesRes.Metrics.BySignalType, topN)
	sum.TimeframeDeltas = deltaTopN(histRes.Metrics.ByTimeframe, rulesRes.Metrics.ByTimeframe, topN)
	sum.DirectionDeltas = deltaTopN(histRes.Metrics.ByDirection, rulesRes.Metrics.ByDirection, topN)

	histSet := counterKeySet(histRes.Metrics.BySignalType)
	rulesSet := counterKeySet(rulesRes.Metrics.BySignalType)

	sum.MissingHistoryRulesTop = classifyMissing(histSet, rulesSet, rulesRes.Diagnostics, topN)
	sum.NewRuleTypesTop = classifyMissing(rulesSet, histSet, nil, topN)

	sum.RuleOverlap = jaccard(histSet, rulesSet)

	return sum, nil
}

func deltaTopN(a, b []reporting.CounterEntry, topN int) []DeltaEntry {
	am := counterMap(a)
	bm := counterMap(b)
	keys := map[string]bool{}
	for k := range am {
		keys[k] = true
	}
	for k := range bm {
		keys[k] = true
	}
	out := make([]DeltaEntry, 0, len(keys))
	for k := range keys {
		out = append(out, DeltaEntry{Key: k, HistoryCount: am[k], RulesCount: bm[k], Delta: am[k] - bm[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := abs(out[i].Delta), abs(out[j].Delta)
		if di != dj {
			return di > dj
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func counterMap(entries []reporting.CounterEntry) map[string]int {
	m := make(map[string]int, len(entries))
	for _, e := range entries {
		m[e.Key] = e.Count
	}
	return m
}

func counterKeySet(entries []reporting.CounterEntry) map[string]bool {
	m := make(map[string]bool, len(entries))
	for _, e := range entries {
		m[e.Key] = true
	}
	return m
}

// classifyMissing finds keys present in `present` but absent from `absent`,
// classifying each with the rule-replay diagnostic counters when available
// (spec §4.9 root-cause rule).
func classifyMissing(present, absent map[string]bool, diag *signalsource.RuleReplayDiagnostics, topN int) []MissingRule {
	var missing []string
	for k := range present {
		if !absent[k] {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	if len(missing) > topN {
		missing = missing[:topN]
	}

	out := make([]MissingRule, 0, len(missing))
	for _, name := range missing {
		reason := "unknown"
		if diag != nil {
			if counters, ok := diag.Counters[name]; ok {
				profile := diag.Profiles[name]
				switch {
				case counters.Evaluated == 0:
					reason = "not_evaluated"
				case counters.TimeframeFiltered > 0 && counters.Triggered == 0 && len(profile.Overlap) == 0:
					reason = "timeframe_no_data"
				default:
					reason = largestBucket(counters)
				}
			} else {
				reason = "not_evaluated"
			}
		}
		out = append(out, MissingRule{Name: name, PrimaryBlockReason: reason})
	}
	return out
}

func largestBucket(c signalsource.RuleCounters) string {
	best := "unknown"
	bestVal := 0
	consider := func(name string, val int) {
		if val > bestVal {
			best, bestVal = name, val
		}
	}
	consider("condition_failed", c.ConditionFailed)
	consider("timeframe_filtered", c.TimeframeFiltered)
	consider("volume_filtered", c.VolumeFiltered)
	consider("cooldown_blocked", c.CooldownBlocked)
	if bestVal == 0 {
		if c.Evaluated > 0 {
			return "unknown"
		}
		return "not_evaluated"
	}
	return best
}

func jaccard(a, b map[string]bool) RuleOverlap {
	inter, union := 0, 0
	seen := map[string]bool{}
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	historyOnly, rulesOnly := 0, 0
	for k := range seen {
		union++
		if a[k] && b[k] {
			inter++
		} else if a[k] {
			historyOnly++
		} else {
			rulesOnly++
		}
	}
	j := 0.0
	if union > 0 {
		j = float64(inter) / float64(union)
	}
	return RuleOverlap{
		Jaccard:            j,
		HistoryOnly:        historyOnly,
		RulesOnly:          rulesOnly,
		Intersection:       inter,
		HistoryCoveragePct: safePct(inter, historyOnly+inter),
		RuleCoveragePct:    safePct(inter, rulesOnly+inter),
	}
}

// safePct returns num/den as a percentage, or 0 when den is 0.
func safePct(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den) * 100
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RenderMarkdown produces the human-readable comparison.md contents for one
// history-vs-rule-replay comparison run.
func RenderMarkdown(sum Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Backtest Mode Comparison\n\n")
	fmt.Fprintf(&b, "- history_run: `%s`\n", sum.HistoryRunID)
	fmt.Fprintf(&b, "- rule_replay_run: `%s`\n\n", sum.RulesRunID)

	h, r := sum.HistoryMetrics, sum.RulesMetrics
	fmt.Fprintf(&b, "## Metrics\n\n")
	fmt.Fprintf(&b, "| Metric | History | Rule Replay |\n|---|---:|---:|\n")
	fmt.Fprintf(&b, "| Return | %+.2f%% | %+.2f%% |\n", h.TotalReturnPct, r.TotalReturnPct)
	fmt.Fprintf(&b, "| Max drawdown | %.2f%% | %.2f%% |\n", h.MaxDrawdownPct, r.MaxDrawdownPct)
	fmt.Fprintf(&b, "| Trades | %d | %d |\n", h.TradeCount, r.TradeCount)
	fmt.Fprintf(&b, "| Excess return (BH) | %+.2f%% | %+.2f%% |\n", h.ExcessPct, r.ExcessPct)
	fmt.Fprintf(&b, "| Sharpe | %.4f | %.4f |\n", h.Sharpe, r.Sharpe)
	fmt.Fprintf(&b, "| Win rate | %.2f%% | %.2f%% |\n\n", h.WinRatePct, r.WinRatePct)

	fmt.Fprintf(&b, "## Delta (rule - history)\n\n")
	fmt.Fprintf(&b, "- Return delta: `%+.2f%%`\n", r.TotalReturnPct-h.TotalReturnPct)
	fmt.Fprintf(&b, "- Max drawdown delta: `%+.2f%%`\n", r.MaxDrawdownPct-h.MaxDrawdownPct)
	fmt.Fprintf(&b, "- Trade count delta: `%+d`\n", r.TradeCount-h.TradeCount)
	fmt.Fprintf(&b, "- Excess return delta: `%+.2f%%`\n\n", r.ExcessPct-h.ExcessPct)

	ov := sum.RuleOverlap
	fmt.Fprintf(&b, "## Rule Alignment\n\n")
	fmt.Fprintf(&b, "- Rule type overlap: shared `%d` / history-only `%d` / rule-only `%d`\n",
		ov.Intersection, ov.HistoryOnly, ov.RulesOnly)
	fmt.Fprintf(&b, "- Jaccard: `%.2f%%` | history coverage: `%.2f%%` | rule coverage: `%.2f%%`\n\n",
		ov.Jaccard*100, ov.HistoryCoveragePct, ov.RuleCoveragePct)

	renderMissingTable(&b, "Missing in Rule Replay (history>0, rule=0)", sum.MissingHistoryRulesTop)
	renderMissingTable(&b, "New in Rule Replay (history=0, rule>0)", sum.NewRuleTypesTop)

	fmt.Fprintf(&b, "## Signal Profile\n\n")
	renderDeltaTable(&b, "Top Signal-Type Delta", sum.SignalTypeDeltas)
	renderDeltaTable(&b, "Timeframe Delta", sum.TimeframeDeltas)
	renderDeltaTable(&b, "Direction Delta", sum.DirectionDeltas)

	fmt.Fprintf(&b, "## Notes\n\n")
	fmt.Fprintf(&b, "- `history` = history_signal backtest\n")
	fmt.Fprintf(&b, "- `rule` = offline_rule_replay backtest\n")

	return b.String()
}

func renderMissingTable(b *strings.Builder, title string, rows []MissingRule) {
	fmt.Fprintf(b, "### %s\n\n", title)
	fmt.Fprintf(b, "| signal_type | primary_block_reason |\n|---|---|\n")
	if len(rows) == 0 {
		b.WriteString("| -- | -- |\n")
	}
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row.Name, row.PrimaryBlockReason)
	}
	b.WriteString("\n")
}

func renderDeltaTable(b *strings.Builder, title string, rows []DeltaEntry) {
	fmt.Fprintf(b, "### %s\n\n", title)
	fmt.Fprintf(b, "| key | history | rule | delta |\n|---|---:|---:|---:|\n")
	if len(rows) == 0 {
		b.WriteString("| -- | -- | -- | -- |\n")
	}
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %d | %d | %+d |\n", row.Key, row.HistoryCount, row.RulesCount, row.Delta)
	}
	b.WriteString("\n")
}

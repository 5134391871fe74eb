// FILE: internal/reporting/metrics.go
// Package reporting – Derives run metrics from trades/curve and renders the
// markdown report (C7).
package reporting

import (
	"math"
	"sort"

	"github.com/tradecore/backsignal/internal/model"
)

// SymbolContribution is one symbol's slice of a run's PnL.
type SymbolContribution struct {
	Symbol           string  `json:"symbol"`
	PnLNet           float64 `json:"pnl_net"`
	TradeCount       int     `json:"trade_count"`
	WinRatePct       float64 `json:"win_rate_pct"`
	AvgHoldingMinutes float64 `json:"avg_holding_minutes"`
}

// CounterEntry is one (key, count) pair in a signal-profile breakdown.
type CounterEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Metrics is the full derived-metrics bundle written to metrics.json.
type Metrics struct {
	TotalReturnPct    float64               `json:"total_return_pct"`
	MaxDrawdownPct    float64               `json:"max_drawdown_pct"`
	Sharpe            float64               `json:"sharpe"`
	WinRatePct        float64               `json:"win_rate_pct"`
	ProfitFactor      float64               `json:"profit_factor"`
	AvgHoldingMinutes float64               `json:"avg_holding_minutes"`
	TradeCount        int                   `json:"trade_count"`
	BuyHoldPct        float64               `json:"buy_hold_pct"`
	ExcessPct         float64               `json:"excess_pct"`
	InitialEquity     float64               `json:"initial_equity"`
	FinalEquity       float64               `json:"final_equity"`
	BySymbol          []SymbolContribution  `json:"by_symbol"`
	BySignalType      []CounterEntry        `json:"by_signal_type"`
	ByDirection       []CounterEntry        `json:"by_direction"`
	ByTimeframe       []CounterEntry        `json:"by_timeframe"`
}

// annualizationFactor is sqrt(minutes per year), for annualizing a minute-return Sharpe.
var annualizationFactor = math.Sqrt(365 * 24 * 60)

// Compute derives every metric named in spec §4.6 from a run's trades and
// equity curve, plus the bars used to build a buy-hold baseline.
func Compute(trades []model.Trade, curve []model.EquityPoint, bars map[string][]model.Bar, initialEquity float64) Metrics {
	m := Metrics{InitialEquity: initialEquity, TradeCount: len(trades)}

	finalEquity := initialEquity
	if len(curve) > 0 {
		finalEquity = curve[len(curve)-1].Equity
	}
	m.FinalEquity = finalEquity
	if initialEquity != 0 {
		m.TotalReturnPct = (finalEquity/initialEquity - 1) * 100
	}

	m.MaxDrawdownPct = maxDrawdownPct(curve)
	m.Sharpe = sharpe(curve)

	var wins int
	var sumGain, sumLoss, sumHoldMinutes float64
	bySymbol := map[string]*SymbolContribution{}

	for _, t := range trades {
		sumHoldMinutes += t.HoldingMinutes()
		if t.PnLNet > 0 {
			wins++
			sumGain += t.PnLNet
		} else if t.PnLNet < 0 {
			sumLoss += -t.PnLNet
		}

		sc, ok := bySymbol[t.Symbol]
		if !ok {
			sc = &SymbolContribution{Symbol: t.Symbol}
			bySymbol[t.Symbol] = sc
		}
		sc.PnLNet += t.PnLNet
		sc.TradeCount++
		sc.AvgHoldingMinutes += t.HoldingMinutes()
		if t.PnLNet > 0 {
			sc.WinRatePct++
		}
	}

	if len(trades) > 0 {
		m.WinRatePct = float64(wins) / float64(len(trades)) * 100
		m.AvgHoldingMinutes = sumHoldMinutes / float64(len(trades))
	}
	switch {
	case sumLoss == 0 && sumGain > 0:
		m.ProfitFactor = 999
	case sumLoss == 0:
		m.ProfitFactor = 0
	default:
		m.ProfitFactor = sumGain / sumLoss
	}

	for _, sc := range bySymbol {
		if sc.TradeCount > 0 {
			sc.AvgHoldingMinutes /= float64(sc.TradeCount)
			sc.WinRatePct = sc.WinRatePct / float64(sc.TradeCount) * 100
		}
	}
	m.BySymbol = sortedContributions(bySymbol)

	m.BuyHoldPct = buyHoldPct(bars)
	m.ExcessPct = m.TotalReturnPct - m.BuyHoldPct

	return m
}

// AttachSignalProfile fills in the by_signal_type/by_direction/by_timeframe
// counters from the raw signal stream that fed a run (separate from Compute
// because walk-forward folds synthesize metrics without a signal stream).
func AttachSignalProfile(m Metrics, events []model.SignalEvent) Metrics {
	byType := map[string]int{}
	byDir := map[string]int{}
	byTF := map[string]int{}
	for _, e := range events {
		byType[e.SignalType]++
		byDir[string(e.Direction)]++
		byTF[e.Timeframe]++
	}
	m.BySignalType = sortedCounters(byType)
	m.ByDirection = sortedCounters(byDir)
	m.ByTimeframe = sortedCounters(byTF)
	return m
}

func maxDrawdownPct(curve []model.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak <= 0 {
			continue
		}
		dd := (peak - p.Equity) / peak
		if dd > worst {
			worst = dd
		}
	}
	return worst * 100
}

func sharpe(curve []model.EquityPoint) float64 {
	if len(curve) < 4 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 3 {
		return 0
	}
	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns))
	stdev := math.Sqrt(variance)
	if stdev <= 1e-12 {
		return 0
	}
	return mean / stdev * annualizationFactor
}

// buyHoldPct is the equal-weighted mean of each symbol's first-to-last close
// return.
func buyHoldPct(bars map[string][]model.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	total := 0.0
	n := 0
	for _, series := range bars {
		if len(series) < 2 {
			continue
		}
		first := series[0].Close
		last := series[len(series)-1].Close
		if first == 0 {
			continue
		}
		total += (last/first - 1) * 100
		n++
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

func sortedContributions(m map[string]*SymbolContribution) []SymbolContribution {
	out := make([]SymbolContribution, 0, len(m))
	for _, sc := range m {
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PnLNet != out[j].PnLNet {
			return out[i].PnLNet > out[j].PnLNet
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

func sortedCounters(m map[string]int) []CounterEntry {
	out := make([]CounterEntry, 0, len(m))
	for k, v := range m {
		out = append(out, CounterEntry{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

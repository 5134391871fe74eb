// FILE: internal/reporting/metrics_test.go
package reporting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tradecore/backsignal/internal/model"
)

func trade(symbol string, entryTS, exitTS time.Time, pnlNet float64) model.Trade {
	return model.Trade{
		Symbol:   symbol,
		Side:     model.SideLong,
		EntryTS:  entryTS,
		ExitTS:   exitTS,
		PnLNet:   pnlNet,
		PnLGross: pnlNet,
	}
}

func eq(ts time.Time, equity float64) model.EquityPoint {
	return model.EquityPoint{TS: ts, Equity: equity}
}

func TestCompute_TotalReturnAndFinalEquity(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []model.EquityPoint{eq(base, 10000), eq(base.Add(time.Hour), 11000)}
	m := Compute(nil, curve, nil, 10000)
	assert.InDelta(t, 10.0, m.TotalReturnPct, 1e-9)
	assert.Equal(t, 11000.0, m.FinalEquity)
}

func TestCompute_NoTradesLeavesRateMetricsZero(t *testing.T) {
	m := Compute(nil, nil, nil, 10000)
	assert.Equal(t, 0, m.TradeCount)
	assert.Equal(t, 0.0, m.WinRatePct)
	assert.Equal(t, 0.0, m.AvgHoldingMinutes)
	assert.Equal(t, 10000.0, m.FinalEquity, "an empty curve falls back to initial equity")
}

func TestCompute_WinRateAndProfitFactor(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		trade("BTCUSD", base, base.Add(30*time.Minute), 100),
		trade("BTCUSD", base, base.Add(60*time.Minute), -50),
		trade("ETHUSD", base, base.Add(90*time.Minute), 50),
	}
	m := Compute(trades, nil, nil, 10000)
	assert.Equal(t, 3, m.TradeCount)
	assert.InDelta(t, 200.0/3.0, m.WinRatePct, 1e-9)
	assert.InDelta(t, 150.0/50.0, m.ProfitFactor, 1e-9)
}

func TestCompute_ProfitFactorWithNoLosses(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.Trade{trade("BTCUSD", base, base.Add(time.Hour), 100)}
	m := Compute(trades, nil, nil, 10000)
	assert.Equal(t, 999.0, m.ProfitFactor)
}

func TestCompute_ProfitFactorWithNoTrades(t *testing.T) {
	m := Compute(nil, nil, nil, 10000)
	assert.Equal(t, 0.0, m.ProfitFactor)
}

func TestCompute_BySymbolAggregatesAndRanksByPnL(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		trade("BTCUSD", base, base.Add(30*time.Minute), 10),
		trade("ETHUSD", base, base.Add(60*time.Minute), 100),
	}
	m := Compute(trades, nil, nil, 10000)
	assert.Len(t, m.BySymbol, 2)
	assert.Equal(t, "ETHUSD", m.BySymbol[0].Symbol, "symbols rank by descending PnL")
	assert.Equal(t, 100.0, m.BySymbol[0].PnLNet)
	assert.Equal(t, 100.0, m.BySymbol[0].WinRatePct)
}

func TestCompute_MaxDrawdownPct(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []model.EquityPoint{
		eq(base, 10000),
		eq(base.Add(time.Hour), 12000),
		eq(base.Add(2*time.Hour), 9000),
		eq(base.Add(3*time.Hour), 11000),
	}
	m := Compute(nil, curve, nil, 10000)
	assert.InDelta(t, 25.0, m.MaxDrawdownPct, 1e-9, "drawdown from peak 12000 to trough 9000 is 25%")
}

func TestCompute_BuyHoldAndExcess(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []model.EquityPoint{eq(base, 10000), eq(base.Add(time.Hour), 10500)}
	bars := map[string][]model.Bar{
		"BTCUSD": {
			{Symbol: "BTCUSD", TS: base, Close: 100},
			{Symbol: "BTCUSD", TS: base.Add(time.Hour), Close: 110},
		},
	}
	m := Compute(nil, curve, bars, 10000)
	assert.InDelta(t, 10.0, m.BuyHoldPct, 1e-9)
	assert.InDelta(t, 5.0-10.0, m.ExcessPct, 1e-9)
}

func TestCompute_SharpeZeroBelowFourPoints(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := []model.EquityPoint{eq(base, 10000), eq(base.Add(time.Hour), 10100)}
	m := Compute(nil, curve, nil, 10000)
	assert.Equal(t, 0.0, m.Sharpe)
}

func TestAttachSignalProfile_CountsByTypeDirectionAndTimeframe(t *testing.T) {
	events := []model.SignalEvent{
		{SignalType: "rsi_cross", Direction: model.DirBuy, Timeframe: "1m"},
		{SignalType: "rsi_cross", Direction: model.DirBuy, Timeframe: "1m"},
		{SignalType: "macd_cross", Direction: model.DirSell, Timeframe: "5m"},
	}
	m := AttachSignalProfile(Metrics{}, events)
	require := assert.New(t)
	require.Len(m.BySignalType, 2)
	require.Equal("rsi_cross", m.BySignalType[0].Key)
	require.Equal(2, m.BySignalType[0].Count)
	require.Len(m.ByDirection, 2)
	require.Len(m.ByTimeframe, 2)
}

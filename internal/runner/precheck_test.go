// FILE: internal/runner/precheck_test.go
package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/backsignal/internal/barclock"
	"github.com/tradecore/backsignal/internal/config"
	"github.com/tradecore/backsignal/internal/model"
)

func TestPrecheck_PassesWhenAllFloorsMet(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	win := barclock.Window{Start: base, End: base.AddDate(0, 0, 2)}
	events := []model.SignalEvent{
		{TS: base, Symbol: "BTCUSD"},
		{TS: base.AddDate(0, 0, 1), Symbol: "BTCUSD"},
	}
	bars := map[string][]model.Bar{"BTCUSD": make([]model.Bar, 2880)}

	res, err := Precheck(events, bars, win, 1, config.ModeHistorySignal, PrecheckThresholds{MinSignalDays: 2, MinSignalCount: 2, MinCandleCoveragePct: 90})
	require.NoError(t, err)
	assert.Equal(t, 2, res.SignalDays)
	assert.Equal(t, 2, res.SignalCount)
	assert.InDelta(t, 100.0, res.CandleCoveragePct, 1e-9)
}

func TestPrecheck_FailsOnInsufficientSignalDays(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	win := barclock.Window{Start: base, End: base.AddDate(0, 0, 2)}
	events := []model.SignalEvent{{TS: base, Symbol: "BTCUSD"}}
	bars := map[string][]model.Bar{"BTCUSD": make([]model.Bar, 2880)}

	_, err := Precheck(events, bars, win, 1, config.ModeHistorySignal, PrecheckThresholds{MinSignalDays: 2, MinSignalCount: 1, MinCandleCoveragePct: 0})
	var pe *model.PrecheckError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.SignalDays)
}

func TestPrecheck_FailsOnLowCandleCoverage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	win := barclock.Window{Start: base, End: base.AddDate(0, 0, 2)}
	bars := map[string][]model.Bar{"BTCUSD": make([]model.Bar, 100)}

	_, err := Precheck(nil, bars, win, 1, config.ModeHistorySignal, PrecheckThresholds{MinCandleCoveragePct: 90})
	var pe *model.PrecheckError
	require.ErrorAs(t, err, &pe)
}

func TestPrecheck_NoExpectedBarsDefaultsToFullCoverage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	win := barclock.Window{Start: base, End: base}
	res, err := Precheck(nil, nil, win, 1, config.ModeHistorySignal, PrecheckThresholds{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.CandleCoveragePct)
}

func TestPrecheck_SignalFloorsIgnoredOutsideHistorySignalMode(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	win := barclock.Window{Start: base, End: base.AddDate(0, 0, 2)}
	bars := map[string][]model.Bar{"BTCUSD": make([]model.Bar, 2880)}

	res, err := Precheck(nil, bars, win, 1, config.ModeOfflineReplay, PrecheckThresholds{MinSignalDays: 10, MinSignalCount: 1000, MinCandleCoveragePct: 90})
	require.NoError(t, err, "signal_days/signal_count floors only gate history_signal runs")
	assert.Equal(t, 0, res.SignalDays)
}

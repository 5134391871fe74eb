// FILE: internal/store/fsartifacts_test.go
package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/backsignal/internal/model"
)

func TestFSArtifactSink_WritesFullBundle(t *testing.T) {
	root := t.TempDir()
	sink := NewFSArtifactSink(root)
	bundle := Bundle{
		Trades: []model.Trade{{
			Symbol: "BTCUSD", Side: model.SideLong,
			EntryTS: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			ExitTS:  time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC),
			Qty: 1, EntryPrice: 100, ExitPrice: 101, PnLNet: 1, Reason: model.ReasonEODClose,
		}},
		Curve:    []model.EquityPoint{{TS: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Equity: 10000}},
		Metrics:  map[string]any{"sharpe": 1.2},
		ReportMD: "# report\n",
	}
	require.NoError(t, sink.WriteRunArtifacts(context.Background(), "session/run1", bundle))

	dir := filepath.Join(root, "session/run1")
	for _, f := range []string{"trades.csv", "equity_curve.csv", "metrics.json", "report.md"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, "%s should exist", f)
	}
	_, err := os.Stat(filepath.Join(dir, "rule_replay_diagnostics.json"))
	assert.True(t, os.IsNotExist(err), "diagnostics file is only written when the bundle carries one")

	b, err := os.ReadFile(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "2024-01-01 00:00:00")
}

func TestFSArtifactSink_WritesDiagnosticsWhenPresent(t *testing.T) {
	root := t.TempDir()
	sink := NewFSArtifactSink(root)
	bundle := Bundle{Diagnostics: map[string]any{"counters": map[string]int{"triggered": 3}}}
	require.NoError(t, sink.WriteRunArtifacts(context.Background(), "session/run2", bundle))
	_, err := os.Stat(filepath.Join(root, "session/run2", "rule_replay_diagnostics.json"))
	assert.NoError(t, err)
}

func TestAtomicWriters_NeverLeaveTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	require.NoError(t, WriteJSONAtomic(path, map[string]int{"a": 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the final file should remain, no .tmp- leftovers")
	assert.Equal(t, "out.json", entries[0].Name())
}

func TestFSRunStateSink_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "run_state.json")
	sink := NewFSRunStateSink(path)
	require.NoError(t, sink.Write(context.Background(), model.RunState{RunID: "r1", Status: model.StatusDone}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "r1")
}

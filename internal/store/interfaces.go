// FILE: internal/store/interfaces.go
// Package store – External interfaces the core consumes (spec §6), plus
// reference filesystem/in-memory implementations used by the CLI and tests.
// Production-grade persistence (SQLite/Postgres schema management, cloud
// object storage, …) is out of scope (spec §1 Non-goals); callers wire their
// own implementation of these interfaces in production.
package store

import (
	"context"
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

// CandleStore loads OHLCV bars for a symbol set over a window at a given
// timeframe.
type CandleStore interface {
	LoadBars(ctx context.Context, symbols []string, win Window, timeframe string) (map[string][]model.Bar, error)
}

// SignalStore loads persisted signal-history rows for the history source
// (C4a), already ordered by (ts, symbol, event_id).
type SignalStore interface {
	LoadSignals(ctx context.Context, symbols []string, win Window, timeframe string) ([]model.SignalEvent, error)
}

// IndicatorStore loads indicator-table rows for rule-replay (C4c).
type IndicatorStore interface {
	LoadRows(ctx context.Context, table string, symbols []string, win Window) ([]model.Row, error)
}

// ArtifactSink persists one run's artifact bundle.
type ArtifactSink interface {
	WriteRunArtifacts(ctx context.Context, runDir string, bundle Bundle) error
}

// RunStateSink persists the externally-visible run-state document.
type RunStateSink interface {
	Write(ctx context.Context, state model.RunState) error
}

// Clock abstracts wall-clock time so runs are reproducible in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock, backed by time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Window is a half-open [Start, End) UTC range; mirrors barclock.Window to
// avoid a dependency cycle (barclock has no reason to know about store).
type Window struct {
	Start time.Time
	End   time.Time
}

// Bundle is everything one backtest run produces.
type Bundle struct {
	Trades      []model.Trade
	Curve       []model.EquityPoint
	Metrics     map[string]any
	ReportMD    string
	Diagnostics map[string]any // rule_replay_diagnostics.json contents, when present
}

// ConcurrentStore is an optional marker a CandleStore/SignalStore/
// IndicatorStore implementation can satisfy to declare itself safe for
// concurrent fold execution (spec §5).
type ConcurrentStore interface {
	ConcurrencySafe() bool
}

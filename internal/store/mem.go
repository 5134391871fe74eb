// FILE: internal/store/mem.go
// Package store – In-memory reference doubles for CandleStore, SignalStore,
// IndicatorStore, and the cooldown.Store contract. Used by tests; the CLI
// wires the CSV/filesystem stores instead.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

// MemCandleStore serves bars from an in-memory map, pre-sorted per symbol.
type MemCandleStore struct {
	Bars map[string][]model.Bar
}

func NewMemCandleStore() *MemCandleStore { return &MemCandleStore{Bars: map[string][]model.Bar{}} }

func (m *MemCandleStore) Add(b model.Bar) { m.Bars[b.Symbol] = append(m.Bars[b.Symbol], b) }

func (m *MemCandleStore) LoadBars(_ context.Context, symbols []string, win Window, _ string) (map[string][]model.Bar, error) {
	out := make(map[string][]model.Bar)
	for _, sym := range symbols {
		var sel []model.Bar
		for _, b := range m.Bars[sym] {
			if !b.TS.Before(win.Start) && b.TS.Before(win.End) {
				sel = append(sel, b)
			}
		}
		sort.Slice(sel, func(i, j int) bool { return sel[i].TS.Before(sel[j].TS) })
		out[sym] = sel
	}
	return out, nil
}

// MemSignalStore serves persisted history signals.
type MemSignalStore struct {
	Events []model.SignalEvent
}

func NewMemSignalStore() *MemSignalStore { return &MemSignalStore{} }

func (m *MemSignalStore) Add(e model.SignalEvent) { m.Events = append(m.Events, e) }

func (m *MemSignalStore) LoadSignals(_ context.Context, symbols []string, win Window, timeframe string) ([]model.SignalEvent, error) {
	allowed := toSet(symbols)
	var out []model.SignalEvent
	for _, e := range m.Events {
		if len(allowed) > 0 && !allowed[e.Symbol] {
			continue
		}
		if timeframe != "" && e.Timeframe != timeframe {
			continue
		}
		if e.TS.Before(win.Start) || !e.TS.Before(win.End) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// MemIndicatorStore serves indicator-table rows.
type MemIndicatorStore struct {
	Rows map[string][]model.Row // keyed by table
}

func NewMemIndicatorStore() *MemIndicatorStore {
	return &MemIndicatorStore{Rows: map[string][]model.Row{}}
}

func (m *MemIndicatorStore) Add(table string, r model.Row) {
	m.Rows[table] = append(m.Rows[table], r)
}

func (m *MemIndicatorStore) LoadRows(_ context.Context, table string, symbols []string, win Window) ([]model.Row, error) {
	allowed := toSet(symbols)
	startSec, endSec := win.Start.Unix(), win.End.Unix()
	var out []model.Row
	for _, r := range m.Rows[table] {
		if len(allowed) > 0 && !allowed[r.Symbol] {
			continue
		}
		if r.TS < startSec || r.TS >= endSec {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		if a.Timeframe != b.Timeframe {
			return a.Timeframe < b.Timeframe
		}
		if a.TS != b.TS {
			return a.TS < b.TS
		}
		return a.RowID < b.RowID
	})
	return out, nil
}

func toSet(ss []string) map[string]bool {
	if len(ss) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// MemCooldownStore implements cooldown.Store in memory.
type MemCooldownStore struct {
	mu   sync.Mutex
	data map[string]time.Time
}

func NewMemCooldownStore() *MemCooldownStore {
	return &MemCooldownStore{data: map[string]time.Time{}}
}

func (m *MemCooldownStore) Get(_ context.Context, key string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemCooldownStore) Set(_ context.Context, key string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = ts
	return nil
}

func (m *MemCooldownStore) LoadAll(_ context.Context) (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out, nil
}

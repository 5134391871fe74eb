// FILE: internal/signalsource/source.go
// Package signalsource – The SignalSource interface and the history source
// (C4a). All three sources in this package emit streams sorted strictly by
// (ts, symbol, event_id), per the universal "signal order" invariant.
package signalsource

import (
	"context"
	"sort"
	"sync"

	"github.com/tradecore/backsignal/internal/barclock"
	"github.com/tradecore/backsignal/internal/fanout"
	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/store"
)

// Source produces a sorted SignalEvent stream for a window.
type Source interface {
	Load(ctx context.Context) ([]model.SignalEvent, error)
}

// idSeq hands out strictly increasing event IDs within one source instance.
type idSeq struct{ next int64 }

func (s *idSeq) take() int64 {
	s.next++
	return s.next
}

// HistorySource replays persisted signal-table rows (C4a).
type HistorySource struct {
	Store     store.SignalStore
	Symbols   []string
	Window    barclock.Window
	Timeframe string

	// Gate bounds per-symbol fan-out concurrency (spec §5) when Store
	// declares itself safe for concurrent access via store.ConcurrentStore.
	// Nil means sequential, single batched Store.LoadSignals call.
	Gate *fanout.Gate
}

func NewHistorySource(st store.SignalStore, symbols []string, win barclock.Window, timeframe string) *HistorySource {
	return &HistorySource{Store: st, Symbols: symbols, Window: win, Timeframe: timeframe}
}

// Load selects rows in the window, keeps only {BUY, SELL} directions,
// tags source="history", and returns them sorted.
func (h *HistorySource) Load(ctx context.Context) ([]model.SignalEvent, error) {
	raw, err := h.loadRaw(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SignalEvent, 0, len(raw))
	var seq idSeq
	for _, e := range raw {
		if e.Direction != model.DirBuy && e.Direction != model.DirSell {
			continue
		}
		// Open Question #2: history strength is sometimes unparseable
		// upstream; treat anything outside the valid range as a dropped
		// event rather than guessing a fallback.
		if e.Strength < 1 || e.Strength > 100 {
			continue
		}
		e.Source = "history"
		e.EventID = seq.take()
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// loadRaw fans out one LoadSignals call per symbol, gated by h.Gate, when
// the store is both gated and declares itself concurrency-safe; otherwise
// it issues the single batched call every store must also support.
func (h *HistorySource) loadRaw(ctx context.Context) ([]model.SignalEvent, error) {
	cs, concurrent := h.Store.(store.ConcurrentStore)
	if h.Gate == nil || !concurrent || !cs.ConcurrencySafe() || len(h.Symbols) < 2 {
		raw, err := h.Store.LoadSignals(ctx, h.Symbols, store.Window{Start: h.Window.Start, End: h.Window.End}, h.Timeframe)
		if err != nil {
			return nil, &model.StoreError{Op: "signalsource.history.LoadSignals", Err: err, Retryable: true}
		}
		return raw, nil
	}

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		all    []model.SignalEvent
		firstErr error
	)
	for _, sym := range h.Symbols {
		sym := sym
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.Gate.Wait(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = &model.StoreError{Op: "signalsource.history.fanout", Err: err, Retryable: true}
				}
				mu.Unlock()
				return
			}
			rows, err := h.Store.LoadSignals(ctx, []string{sym}, store.Window{Start: h.Window.Start, End: h.Window.End}, h.Timeframe)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = &model.StoreError{Op: "signalsource.history.LoadSignals " + sym, Err: err, Retryable: true}
				}
				return
			}
			all = append(all, rows...)
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

// FILE: internal/execution/engine.go
// Package execution – The deterministic next-bar-open simulator (C6).
//
// Precondition: bars per symbol are sorted; the global timeline is the
// sorted union of all bar timestamps. At every (ts, symbol) with a bar, the
// engine updates last_close, looks up the score bucket, and opens/closes/
// reverses a position per spec §4.5. Equity is snapshotted once per ts after
// all symbols at that ts have been visited; the engine never suspends once
// inputs are materialized (spec §5).
package execution

import (
	"sort"
	"time"

	"github.com/tradecore/backsignal/internal/aggregator"
	"github.com/tradecore/backsignal/internal/model"
)

// Engine runs one deterministic backtest over a fixed set of bars/scores.
type Engine struct {
	Cfg    Config
	Bars   map[string][]model.Bar
	Scores aggregator.ScoreMap
}

func NewEngine(cfg Config, bars map[string][]model.Bar, scores aggregator.ScoreMap) *Engine {
	return &Engine{Cfg: cfg, Bars: bars, Scores: scores}
}

type symbolState struct {
	idx       int
	position  *model.Position
	lastClose float64
	lastTS    time.Time
}

// Run executes the simulation end to end and returns closed trades plus the
// deduplicated, sorted equity curve.
func (e *Engine) Run() ([]model.Trade, []model.EquityPoint) {
	symbols := make([]string, 0, len(e.Bars))
	for sym := range e.Bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	states := make(map[string]*symbolState, len(symbols))
	for _, sym := range symbols {
		states[sym] = &symbolState{}
	}

	timeline := buildTimeline(e.Bars)

	var trades []model.Trade
	var curve []model.EquityPoint
	cash := e.Cfg.InitialEquity

	for _, ts := range timeline {
		for _, sym := range symbols {
			bars := e.Bars[sym]
			st := states[sym]
			if st.idx >= len(bars) || !bars[st.idx].TS.Equal(ts) {
				continue
			}
			bar := bars[st.idx]
			st.lastClose = bar.Close
			st.lastTS = ts

			var nextBar *model.Bar
			if st.idx+1 < len(bars) {
				nextBar = &bars[st.idx+1]
			}

			score, hasScore := e.Scores.At(sym, bar.TS)

			cash, trades = e.stepSymbol(sym, st, score, hasScore, nextBar, cash, trades)

			st.idx++
		}
		curve = appendEquityPoint(curve, ts, markEquity(cash, states))
	}

	// Force-close remaining positions at each symbol's last close, eod_close.
	var finalTS time.Time
	for _, sym := range symbols {
		st := states[sym]
		if st.lastTS.After(finalTS) {
			finalTS = st.lastTS
		}
		if st.position == nil {
			continue
		}
		cash, trades = e.closePosition(st, st.lastClose, st.lastTS, model.ReasonEODClose, cash, trades, st.position.EntryScore)
	}
	if !finalTS.IsZero() {
		curve = appendEquityPoint(curve, finalTS, cash)
	}

	return trades, dedupSortCurve(curve)
}

// stepSymbol applies steps 3-4 of spec §4.5 for one symbol at one bar.
func (e *Engine) stepSymbol(sym string, st *symbolState, score int, hasScore bool, nextBar *model.Bar,
	cash float64, trades []model.Trade) (float64, []model.Trade) {

	if st.position == nil {
		if hasScore && nextBar != nil {
			if score >= e.Cfg.LongOpenThreshold && e.Cfg.AllowLong {
				cash = e.openPosition(sym, st, model.SideLong, nextBar, score, cash)
			} else if score <= -e.Cfg.ShortOpenThreshold && e.Cfg.AllowShort {
				cash = e.openPosition(sym, st, model.SideShort, nextBar, score, cash)
			}
		}
		return cash, trades
	}

	if !hasScore {
		return cash, trades
	}

	pos := st.position
	opposingStrong := (pos.Side == model.SideLong && score <= -e.Cfg.ShortOpenThreshold) ||
		(pos.Side == model.SideShort && score >= e.Cfg.LongOpenThreshold)

	if opposingStrong {
		if nextBar == nil {
			return cash, trades
		}
		var reason model.ExitReason
		var reopenSide model.Side
		reopen := false
		if pos.Side == model.SideLong && e.Cfg.AllowShort {
			reason, reopenSide, reopen = model.ReasonReverseToShort, model.SideShort, true
		} else if pos.Side == model.SideShort && e.Cfg.AllowLong {
			reason, reopenSide, reopen = model.ReasonReverseToLong, model.SideLong, true
		} else {
			reason = model.ReasonExitOnOpposite
		}
		cash, trades = e.closePosition(st, nextBar.Open, nextBar.TS, reason, cash, trades, score)
		if reopen {
			cash = e.openPosition(sym, st, reopenSide, nextBar, score, cash)
		}
		return cash, trades
	}

	absScore := score
	if absScore < 0 {
		absScore = -absScore
	}
	if absScore < e.Cfg.CloseThreshold {
		pos.NeutralStreak++
		heldMinutes := nextBar.TS.Sub(pos.EntryTS).Minutes()
		if pos.NeutralStreak >= e.Cfg.NeutralConfirmMinutes && heldMinutes >= float64(e.Cfg.MinHoldMinutes) {
			cash, trades = e.closePosition(st, nextBar.Open, nextBar.TS, model.ReasonNeutralClose, cash, trades, score)
		}
		return cash, trades
	}

	pos.NeutralStreak = 0
	return cash, trades
}

func (e *Engine) openPosition(sym string, st *symbolState, side model.Side, nextBar *model.Bar, score int, cash float64) float64 {
	entryPrice := EntryPrice(nextBar.Open, side, e.Cfg.Slippage)
	notional := Notional(cash, e.Cfg.PositionSizePct, e.Cfg.Leverage)
	qty := notional / entryPrice
	fee := EntryFee(notional, e.Cfg.FeeRate)

	st.position = &model.Position{
		Symbol:     sym,
		Side:       side,
		Qty:        qty,
		EntryTS:    nextBar.TS,
		EntryPrice: entryPrice,
		EntryFee:   fee,
		EntryScore: score,
	}
	return cash - fee
}

func (e *Engine) closePosition(st *symbolState, rawExit float64, exitTS time.Time, reason model.ExitReason,
	cash float64, trades []model.Trade, exitScore int) (float64, []model.Trade) {

	pos := st.position
	exitPrice := ExitPrice(rawExit, pos.Side, e.Cfg.Slippage)
	fee := ExitFee(pos.Qty, exitPrice, e.Cfg.FeeRate)

	var pnlGross float64
	if pos.Side == model.SideLong {
		pnlGross = (exitPrice - pos.EntryPrice) * pos.Qty
	} else {
		pnlGross = (pos.EntryPrice - exitPrice) * pos.Qty
	}
	pnlNet := pnlGross - pos.EntryFee - fee

	trade := model.Trade{
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Qty:        pos.Qty,
		EntryTS:    pos.EntryTS,
		EntryPrice: pos.EntryPrice,
		EntryFee:   pos.EntryFee,
		EntryScore: pos.EntryScore,
		ExitTS:     exitTS,
		ExitPrice:  exitPrice,
		ExitFee:    fee,
		ExitScore:  exitScore,
		Reason:     reason,
		PnLGross:   pnlGross,
		PnLNet:     pnlNet,
	}
	trades = append(trades, trade)
	st.position = nil
	return cash + pnlGross - fee, trades
}

func markEquity(cash float64, states map[string]*symbolState) float64 {
	total := cash
	for _, st := range states {
		if st.position == nil {
			continue
		}
		total += UnrealizedPnL(st.position.Side, st.position.EntryPrice, st.lastClose, st.position.Qty)
	}
	return total
}

func buildTimeline(bars map[string][]model.Bar) []time.Time {
	set := map[int64]time.Time{}
	for _, series := range bars {
		for _, b := range series {
			set[b.TS.Unix()] = b.TS
		}
	}
	out := make([]time.Time, 0, len(set))
	for _, ts := range set {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

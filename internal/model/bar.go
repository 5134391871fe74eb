// FILE: internal/model/bar.go
// Package model – Core domain types for the backtest pipeline.
//
// Bar is one OHLCV sample at a fixed cadence. It is supplied externally
// (CandleStore) and is read-only to the rest of the core.
package model

import (
	"fmt"
	"time"
)

// Bar is one OHLCV sample.
type Bar struct {
	Symbol string
	TS     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate enforces the Bar invariants: low <= min(open,close) <=
// max(open,close) <= high, and volume >= 0.
func (b Bar) Validate() error {
	lo := b.Open
	if b.Close < lo {
		lo = b.Close
	}
	hi := b.Open
	if b.Close > hi {
		hi = b.Close
	}
	if b.Low > lo || hi > b.High {
		return fmt.Errorf("bar %s@%s: low/high out of range (low=%v open=%v close=%v high=%v)",
			b.Symbol, b.TS.Format(time.RFC3339), b.Low, b.Open, b.Close, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s@%s: negative volume %v", b.Symbol, b.TS.Format(time.RFC3339), b.Volume)
	}
	return nil
}

// Direction is the intent carried by a SignalEvent.
type Direction string

const (
	DirBuy   Direction = "BUY"
	DirSell  Direction = "SELL"
	DirAlert Direction = "ALERT"
)

// SignalEvent is an atomic directional intent.
type SignalEvent struct {
	EventID    int64
	TS         time.Time
	Symbol     string
	Direction  Direction
	Strength   int // [1..100]
	SignalType string
	Timeframe  string
	Source     string
	Price      *float64
}

// Less orders events by (ts, symbol, event_id), the canonical stream order.
func (e SignalEvent) Less(o SignalEvent) bool {
	if !e.TS.Equal(o.TS) {
		return e.TS.Before(o.TS)
	}
	if e.Symbol != o.Symbol {
		return e.Symbol < o.Symbol
	}
	return e.EventID < o.EventID
}

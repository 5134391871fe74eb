// FILE: internal/aggregator/aggregator.go
// Package aggregator – Per-symbol time-bucketed score aggregation (C5).
//
// Buckets each signal to its minute, sums signed strength per (symbol,
// minute), tracks the hold window for each scored minute, then forward-fills
// every scored minute across its hold window, but never past the next
// scored minute for that symbol. This guarantees a single event on a 5m base
// timeframe carries its score for up to five consecutive 1m buckets, so the
// executor doesn't misread silence as neutrality.
package aggregator

import (
	"sort"
	"time"

	"github.com/tradecore/backsignal/internal/barclock"
	"github.com/tradecore/backsignal/internal/model"
)

// ScoreMap is map[symbol] -> map[minute_unix] -> net_score.
type ScoreMap map[string]map[int64]int

// Aggregate implements the two-pass algorithm from spec §4.4.
func Aggregate(events []model.SignalEvent, baseTimeframeMinutes int) ScoreMap {
	netScore := map[string]map[int64]int{}
	holdMinutes := map[string]map[int64]int{}

	eventTFMinutes := func(e model.SignalEvent) int {
		if e.Timeframe == "" {
			return baseTimeframeMinutes
		}
		if m, err := barclock.TimeframeMinutes(e.Timeframe); err == nil {
			return m
		}
		return baseTimeframeMinutes
	}

	for _, e := range events {
		bucket := barclock.FloorMinute(e.TS).Unix()
		if netScore[e.Symbol] == nil {
			netScore[e.Symbol] = map[int64]int{}
			holdMinutes[e.Symbol] = map[int64]int{}
		}
		delta := e.Strength
		if e.Direction == model.DirSell {
			delta = -delta
		} else if e.Direction != model.DirBuy {
			delta = 0
		}
		netScore[e.Symbol][bucket] += delta

		hold := baseTimeframeMinutes
		if m := eventTFMinutes(e); m > hold {
			hold = m
		}
		if prior, ok := holdMinutes[e.Symbol][bucket]; ok && prior > hold {
			hold = prior
		}
		holdMinutes[e.Symbol][bucket] = hold
	}

	out := ScoreMap{}
	for symbol, byBucket := range netScore {
		buckets := make([]int64, 0, len(byBucket))
		for b := range byBucket {
			buckets = append(buckets, b)
		}
		sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })

		filled := map[int64]int{}
		for idx, b := range buckets {
			score := byBucket[b]
			hold := holdMinutes[symbol][b]
			end := b + int64(hold)*60
			if idx+1 < len(buckets) && buckets[idx+1] < end {
				end = buckets[idx+1]
			}
			for t := b; t < end; t += 60 {
				filled[t] = score
			}
		}
		out[symbol] = filled
	}
	return out
}

// At returns the net score for symbol at minute ts, and whether any score
// is present there ("no signal" otherwise).
func (s ScoreMap) At(symbol string, ts time.Time) (int, bool) {
	bySymbol, ok := s[symbol]
	if !ok {
		return 0, false
	}
	v, ok := bySymbol[barclock.FloorMinute(ts).Unix()]
	return v, ok
}

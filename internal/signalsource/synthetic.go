// FILE: internal/signalsource/synthetic.go
// Package signalsource – Synthetic replay source (C4b).
//
// Walks bars per symbol in order, emitting at most one event per bar from a
// small deterministic rule set: momentum, breakout/breakdown, and
// volume-confirmed continuation. Within MinSignalGapBars of the last event,
// a same-direction event is suppressed and an opposite-direction event fires
// only with strength >= OppositeEarlyMinStr (default 80).
package signalsource

import (
	"context"
	"sort"

	"github.com/tradecore/backsignal/internal/model"
)

// SyntheticConfig holds the tunable thresholds; defaults match spec §4.3.
type SyntheticConfig struct {
	MomentumPctChange   float64 // default 0.0012 (0.12%)
	BreakoutPct         float64 // default 0.0005 (0.05%)
	VolumeRatio         float64 // default 2.8
	VolumeConfirmPct    float64 // default 0.0003 (0.03%)
	MinSignalGapBars    int     // default 3
	OppositeEarlyMinStr int     // default 80
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		MomentumPctChange:   0.0012,
		BreakoutPct:         0.0005,
		VolumeRatio:         2.8,
		VolumeConfirmPct:    0.0003,
		MinSignalGapBars:    3,
		OppositeEarlyMinStr: 80,
	}
}

// SyntheticReplaySource generates signals directly from bars.
type SyntheticReplaySource struct {
	Bars   map[string][]model.Bar
	Cfg    SyntheticConfig
}

func NewSyntheticReplaySource(bars map[string][]model.Bar, cfg SyntheticConfig) *SyntheticReplaySource {
	return &SyntheticReplaySource{Bars: bars, Cfg: cfg}
}

type candidate struct {
	dir      model.Direction
	strength int
	typ      string
}

// Load evaluates every symbol's bar series independently and merges the
// results into one sorted stream.
func (s *SyntheticReplaySource) Load(_ context.Context) ([]model.SignalEvent, error) {
	var seq idSeq
	var out []model.SignalEvent

	symbols := make([]string, 0, len(s.Bars))
	for sym := range s.Bars {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		bars := s.Bars[sym]
		lastFireIdx := -1 - s.Cfg.MinSignalGapBars
		var lastDir model.Direction
		for i := 1; i < len(bars); i++ {
			prev, curr := bars[i-1], bars[i]
			cand := bestCandidate(prev, curr, s.Cfg)
			if cand == nil {
				continue
			}
			gap := i - lastFireIdx
			sameDir := cand.dir == lastDir
			if sameDir && gap < s.Cfg.MinSignalGapBars {
				continue
			}
			if !sameDir && lastFireIdx >= 0 && gap < s.Cfg.MinSignalGapBars && cand.strength < s.Cfg.OppositeEarlyMinStr {
				continue
			}
			out = append(out, model.SignalEvent{
				EventID:    seq.take(),
				TS:         curr.TS,
				Symbol:     sym,
				Direction:  cand.dir,
				Strength:   cand.strength,
				SignalType: cand.typ,
				Timeframe:  "",
				Source:     "offline_replay",
			})
			lastFireIdx = i
			lastDir = cand.dir
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// bestCandidate evaluates the three deterministic rules at one bar and
// returns the highest-strength candidate, or nil if none fire.
func bestCandidate(prev, curr model.Bar, cfg SyntheticConfig) *candidate {
	var cands []candidate

	if prev.Close != 0 {
		pct := (curr.Close - prev.Close) / prev.Close
		if pct >= cfg.MomentumPctChange {
			cands = append(cands, candidate{model.DirBuy, clampStrength(50 + int(pct*10000)), "momentum_up"})
		} else if pct <= -cfg.MomentumPctChange {
			cands = append(cands, candidate{model.DirSell, clampStrength(50 + int(-pct*10000)), "momentum_down"})
		}
	}

	if prev.High != 0 {
		up := (curr.Close - prev.High) / prev.High
		if up >= cfg.BreakoutPct {
			cands = append(cands, candidate{model.DirBuy, clampStrength(55 + int(up*10000)), "breakout"})
		}
	}
	if prev.Low != 0 {
		down := (prev.Low - curr.Close) / prev.Low
		if down >= cfg.BreakoutPct {
			cands = append(cands, candidate{model.DirSell, clampStrength(55 + int(down*10000)), "breakdown"})
		}
	}

	if prev.Volume > 0 && prev.Close != 0 {
		volRatio := curr.Volume / prev.Volume
		priceChange := (curr.Close - prev.Close) / prev.Close
		if volRatio >= cfg.VolumeRatio && priceChange >= cfg.VolumeConfirmPct {
			cands = append(cands, candidate{model.DirBuy, clampStrength(60 + int(priceChange*10000)), "volume_confirmed_up"})
		} else if volRatio >= cfg.VolumeRatio && priceChange <= -cfg.VolumeConfirmPct {
			cands = append(cands, candidate{model.DirSell, clampStrength(60 + int(-priceChange*10000)), "volume_confirmed_down"})
		}
	}

	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.strength > best.strength {
			best = c
		}
	}
	return &best
}

func clampStrength(v int) int {
	if v < 50 {
		return 50
	}
	if v > 95 {
		return 95
	}
	return v
}

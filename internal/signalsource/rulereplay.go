// FILE: internal/signalsource/rulereplay.go
// Package signalsource – Rule-replay source (C4c).
//
// Groups enabled rules by table; for each table loads rows in the window,
// sorted (symbol, timeframe, ts, rowid), and evaluates every rule on
// consecutive (prev, curr) pairs within a (symbol, timeframe) group. Each
// pair funnels through: evaluated -> timeframe_filtered | volume_filtered |
// condition_failed | cooldown_blocked | triggered.
package signalsource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tradecore/backsignal/internal/cooldown"
	"github.com/tradecore/backsignal/internal/fanout"
	"github.com/tradecore/backsignal/internal/model"
	"github.com/tradecore/backsignal/internal/ratelog"
	"github.com/tradecore/backsignal/internal/rules"
	"github.com/tradecore/backsignal/internal/store"
	"github.com/tradecore/backsignal/internal/telemetry"
)

// canonicalHighTimeframes is the default timeframe set that triggers
// preferred-timeframe substitution (spec §4.3, scenario S4).
var canonicalHighTimeframes = map[string]bool{"1h": true, "4h": true, "1d": true}

// RuleCounters tallies one rule's pipeline outcomes across a run.
type RuleCounters struct {
	Evaluated        int
	TimeframeFiltered int
	VolumeFiltered   int
	ConditionFailed  int
	CooldownBlocked  int
	Triggered        int
}

// TimeframeProfile is the (configured, observed, overlap) diagnostic for
// one rule.
type TimeframeProfile struct {
	Configured []string
	Observed   []string
	Overlap    []string
}

// RuleReplayDiagnostics is the per-run diagnostic bundle written alongside
// metrics for mode=offline_rule_replay.
type RuleReplayDiagnostics struct {
	Counters  map[string]RuleCounters
	Profiles  map[string]TimeframeProfile
}

// RuleReplaySource evaluates a rule set over indicator rows (C4c).
type RuleReplaySource struct {
	Store              store.IndicatorStore
	Rules              []model.Rule
	Symbols            []string
	Window             store.Window
	PreferredTimeframe string // e.g. "1m"; substituted when a rule's set is canonical
	Ledger             *cooldown.Ledger
	Clock              store.Clock
	ErrLimiter         *ratelog.Limiter

	// Gate bounds concurrent per-table LoadRows fan-out (spec §5) when
	// Store declares itself concurrency-safe. Nil means sequential loads.
	Gate *fanout.Gate

	Diagnostics RuleReplayDiagnostics
}

func NewRuleReplaySource(st store.IndicatorStore, rs []model.Rule, symbols []string, win store.Window,
	preferredTF string, ledger *cooldown.Ledger, clock store.Clock) *RuleReplaySource {
	return &RuleReplaySource{
		Store: st, Rules: rs, Symbols: symbols, Window: win,
		PreferredTimeframe: preferredTF, Ledger: ledger, Clock: clock,
		Diagnostics: RuleReplayDiagnostics{
			Counters: make(map[string]RuleCounters),
			Profiles: make(map[string]TimeframeProfile),
		},
	}
}

// Load implements Source.
func (r *RuleReplaySource) Load(ctx context.Context) ([]model.SignalEvent, error) {
	var seq idSeq
	var out []model.SignalEvent

	byTable := map[string][]model.Rule{}
	for _, rule := range r.Rules {
		if !rule.Enabled {
			continue
		}
		byTable[rule.Table] = append(byTable[rule.Table], rule)
	}

	rowsByTable, err := r.loadAllTables(ctx, byTable)
	if err != nil {
		return nil, err
	}

	for table, tableRules := range byTable {
		rows := rowsByTable[table]
		sortRows(rows)
		groups := groupRows(rows)

		for _, rule := range tableRules {
			observedTF := map[string]bool{}
			effectiveTFs, substituted := effectiveTimeframes(rule, r.PreferredTimeframe)
			counters := r.Diagnostics.Counters[rule.Name]

			for gi := range groups {
				g := groups[gi]
				for i := 1; i < len(g); i++ {
					prev, curr := &g[i-1], &g[i]
					observedTF[curr.Timeframe] = true
					counters.Evaluated++

					if !substituted && len(effectiveTFs) > 0 && !effectiveTFs[curr.Timeframe] {
						counters.TimeframeFiltered++
						continue
					}
					if substituted && curr.Timeframe != r.PreferredTimeframe {
						counters.TimeframeFiltered++
						continue
					}
					if rule.MinVolume > 0 {
						if _, ok := curr.Fields["volume"]; ok {
							if rules.Numeric(curr, "volume") < rule.MinVolume {
								counters.VolumeFiltered++
								continue
							}
						}
					}

					fired := rules.Check(rule, prev, curr, r.ErrLimiter)
					if !fired {
						counters.ConditionFailed++
						continue
					}

					key := cooldown.Key(rule.Name, curr.Symbol, curr.Timeframe)
					now := time.Unix(curr.TS, 0).UTC()
					cooldownDur := time.Duration(rule.CooldownS) * time.Second
					if !r.Ledger.Allow(key, now, cooldownDur) {
						counters.CooldownBlocked++
						telemetry.CooldownBlocks.Inc()
						continue
					}
					if err := r.Ledger.Record(ctx, key, now); err != nil {
						telemetry.SignalsSuppressed.WithLabelValues("cooldown_persist_failed").Inc()
						continue
					}

					counters.Triggered++
					out = append(out, model.SignalEvent{
						EventID:    seq.take(),
						TS:         now,
						Symbol:     curr.Symbol,
						Direction:  rule.Direction,
						Strength:   rule.Strength,
						SignalType: rule.Name,
						Timeframe:  curr.Timeframe,
						Source:     "offline_rule_replay",
					})
					telemetry.SignalsEmitted.WithLabelValues("offline_rule_replay").Inc()
				}
			}

			r.Diagnostics.Counters[rule.Name] = counters
			r.Diagnostics.Profiles[rule.Name] = TimeframeProfile{
				Configured: sortedKeys(effectiveTFs),
				Observed:   sortedKeys(observedTF),
				Overlap:    sortedOverlap(effectiveTFs, observedTF),
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// loadAllTables fetches LoadRows for every table in byTable. When r.Gate is
// set and r.Store declares concurrency safety, tables are fetched
// concurrently through the gate; otherwise each table is loaded in turn.
func (r *RuleReplaySource) loadAllTables(ctx context.Context, byTable map[string][]model.Rule) (map[string][]model.Row, error) {
	cs, concurrent := r.Store.(store.ConcurrentStore)
	if r.Gate == nil || !concurrent || !cs.ConcurrencySafe() || len(byTable) < 2 {
		out := make(map[string][]model.Row, len(byTable))
		for table := range byTable {
			rows, err := r.Store.LoadRows(ctx, table, r.Symbols, r.Window)
			if err != nil {
				return nil, &model.StoreError{Op: "signalsource.rulereplay.LoadRows " + table, Err: err, Retryable: true}
			}
			out[table] = rows
		}
		return out, nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		out      = make(map[string][]model.Row, len(byTable))
		firstErr error
	)
	for table := range byTable {
		table := table
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Gate.Wait(ctx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = &model.StoreError{Op: "signalsource.rulereplay.fanout", Err: err, Retryable: true}
				}
				mu.Unlock()
				return
			}
			rows, err := r.Store.LoadRows(ctx, table, r.Symbols, r.Window)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = &model.StoreError{Op: "signalsource.rulereplay.LoadRows " + table, Err: err, Retryable: true}
				}
				return
			}
			out[table] = rows
		}()
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// effectiveTimeframes applies the timeframe-substitution rule (spec §4.3,
// scenario S4): when a rule's default set is exactly the canonical
// {1h,4h,1d} and a preferred timeframe was given, substitute {preferred}.
func effectiveTimeframes(rule model.Rule, preferred string) (map[string]bool, bool) {
	set := map[string]bool{}
	for _, tf := range rule.Timeframes {
		set[tf] = true
	}
	if preferred != "" && len(set) == len(canonicalHighTimeframes) && isCanonical(set) {
		return map[string]bool{preferred: true}, true
	}
	return set, false
}

func isCanonical(set map[string]bool) bool {
	for tf := range set {
		if !canonicalHighTimeframes[tf] {
			return false
		}
	}
	return true
}

func sortRows(rows []model.Row) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
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
}

// groupRows splits sorted rows into contiguous (symbol, timeframe) runs.
func groupRows(rows []model.Row) [][]model.Row {
	var groups [][]model.Row
	var cur []model.Row
	var curSym, curTF string
	for _, r := range rows {
		if len(cur) == 0 || r.Symbol != curSym || r.Timeframe != curTF {
			if len(cur) > 0 {
				groups = append(groups, cur)
			}
			cur = nil
			curSym, curTF = r.Symbol, r.Timeframe
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedOverlap(a, b map[string]bool) []string {
	var out []string
	for k := range a {
		if b[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

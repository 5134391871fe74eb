// FILE: internal/store/csv.go
// Package store – CSV-backed CandleStore/SignalStore/IndicatorStore.
//
// Reads one CSV file per symbol under a directory, headers case-insensitive,
// time column accepting RFC3339 or UNIX seconds, unknown columns ignored,
// the same flexible-parse CSV convention the repository's own backtest
// loader uses. These are reference implementations for the CLI and tests;
// production deployments wire their own CandleStore/SignalStore/
// IndicatorStore against a real data warehouse.
package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tradecore/backsignal/internal/model"
)

// CSVCandleStore loads "<dir>/<symbol>.csv" bar files.
type CSVCandleStore struct {
	Dir string
}

func NewCSVCandleStore(dir string) *CSVCandleStore { return &CSVCandleStore{Dir: dir} }

func (s *CSVCandleStore) LoadBars(_ context.Context, symbols []string, win Window, _ string) (map[string][]model.Bar, error) {
	out := make(map[string][]model.Bar, len(symbols))
	for _, sym := range symbols {
		path := filepath.Join(s.Dir, sym+".csv")
		rows, err := readCSVRows(path)
		if err != nil {
			return nil, &model.StoreError{Op: "csv.LoadBars " + sym, Err: err, Retryable: false}
		}
		var bars []model.Bar
		for _, row := range rows {
			ts, err := parseTimeFlexible(first(row, "time", "timestamp", "ts"))
			if err != nil {
				continue
			}
			if ts.Before(win.Start) || !ts.Before(win.End) {
				continue
			}
			bar := model.Bar{
				Symbol: sym,
				TS:     ts,
				Open:   parseFloatLenient(first(row, "open")),
				High:   parseFloatLenient(first(row, "high")),
				Low:    parseFloatLenient(first(row, "low")),
				Close:  parseFloatLenient(first(row, "close")),
				Volume: parseFloatLenient(first(row, "volume", "vol")),
			}
			if bar.Validate() != nil {
				continue
			}
			bars = append(bars, bar)
		}
		sort.Slice(bars, func(i, j int) bool { return bars[i].TS.Before(bars[j].TS) })
		out[sym] = bars
	}
	return out, nil
}

// CSVSignalStore loads "<dir>/<symbol>.csv" signal-history rows.
type CSVSignalStore struct {
	Dir string
}

func NewCSVSignalStore(dir string) *CSVSignalStore { return &CSVSignalStore{Dir: dir} }

// ConcurrencySafe declares CSVSignalStore safe for the signal sources'
// per-symbol fan-out (spec §5): each symbol reads its own file independently.
func (s *CSVSignalStore) ConcurrencySafe() bool { return true }

func (s *CSVSignalStore) LoadSignals(_ context.Context, symbols []string, win Window, timeframe string) ([]model.SignalEvent, error) {
	var out []model.SignalEvent
	for _, sym := range symbols {
		path := filepath.Join(s.Dir, sym+".csv")
		rows, err := readCSVRows(path)
		if err != nil {
			return nil, &model.StoreError{Op: "csv.LoadSignals " + sym, Err: err, Retryable: false}
		}
		for i, row := range rows {
			ts, err := parseTimeFlexible(first(row, "time", "timestamp", "ts"))
			if err != nil {
				continue
			}
			if ts.Before(win.Start) || !ts.Before(win.End) {
				continue
			}
			tf := first(row, "timeframe")
			if timeframe != "" && tf != "" && tf != timeframe {
				continue
			}
			strength, _ := strconv.Atoi(strings.TrimSpace(first(row, "strength")))
			out = append(out, model.SignalEvent{
				EventID:    int64(i),
				TS:         ts,
				Symbol:     sym,
				Direction:  model.Direction(strings.ToUpper(first(row, "direction"))),
				Strength:   strength,
				SignalType: first(row, "signal_type", "type"),
				Timeframe:  tf,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// CSVIndicatorStore loads "<dir>/<table>.csv" indicator rows for rule-replay.
type CSVIndicatorStore struct {
	Dir string
}

func NewCSVIndicatorStore(dir string) *CSVIndicatorStore { return &CSVIndicatorStore{Dir: dir} }

// ConcurrencySafe declares CSVIndicatorStore safe for the rule-replay
// source's per-table fan-out (spec §5): each table reads its own file
// independently.
func (s *CSVIndicatorStore) ConcurrencySafe() bool { return true }

func (s *CSVIndicatorStore) LoadRows(_ context.Context, table string, symbols []string, win Window) ([]model.Row, error) {
	path := filepath.Join(s.Dir, table+".csv")
	rows, err := readCSVRows(path)
	if err != nil {
		return nil, &model.StoreError{Op: "csv.LoadRows " + table, Err: err, Retryable: false}
	}
	wanted := toSet(symbols)
	var out []model.Row
	for i, row := range rows {
		sym := first(row, "symbol")
		if len(wanted) > 0 && !wanted[sym] {
			continue
		}
		ts, err := parseTimeFlexible(first(row, "time", "timestamp", "ts"))
		if err != nil {
			continue
		}
		if ts.Before(win.Start) || !ts.Before(win.End) {
			continue
		}
		out = append(out, model.Row{
			Symbol:    sym,
			Timeframe: first(row, "timeframe"),
			TS:        ts.Unix(),
			RowID:     int64(i),
			Fields:    row,
		})
	}
	return out, nil
}

// readCSVRows loads a CSV file into a slice of lower-cased-header maps,
// mirroring the repository's loadCSV convention: headers case-insensitive,
// FieldsPerRecord relaxed, unknown columns simply carried through.
func readCSVRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var headers []string
	var out []map[string]string
	rowIdx := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if rowIdx == 0 {
			headers = rec
			rowIdx++
			continue
		}
		row := map[string]string{}
		for j, h := range headers {
			k := strings.ToLower(strings.TrimSpace(h))
			if j < len(rec) {
				row[k] = strings.TrimSpace(rec[j])
			}
		}
		out = append(out, row)
		rowIdx++
	}
	return out, nil
}

// parseTimeFlexible supports RFC3339 or UNIX seconds, normalized to UTC.
func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("store: bad time %q", s)
}

func parseFloatLenient(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

// first returns the first non-empty value for keys in m.
func first(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := m[k]; v != "" {
			return v
		}
	}
	return ""
}

// FILE: internal/store/fsartifacts.go
// Package store – Reference local-filesystem ArtifactSink / RunStateSink.
//
// Writes the exact persisted layout from spec §6: trades.csv, equity_curve.csv,
// metrics.json, report.md, and (rule-replay only) rule_replay_diagnostics.json
// under <root>/artifacts/backtest/<session>/<run_id>/, plus run_state.json at
// the root, via tmpfile+rename so a concurrent reader never observes a
// partial write (testable property "Run-state atomicity").
package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tradecore/backsignal/internal/model"
)

// FSArtifactSink writes run artifacts under a root directory.
type FSArtifactSink struct {
	Root string // e.g. <repo>/artifacts/backtest
}

func NewFSArtifactSink(root string) *FSArtifactSink {
	return &FSArtifactSink{Root: root}
}

func (s *FSArtifactSink) WriteRunArtifacts(_ context.Context, runDir string, bundle Bundle) error {
	full := filepath.Join(s.Root, runDir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		return &model.StoreError{Op: "fs.mkdir", Err: err, Retryable: false}
	}

	if err := writeTradesCSV(filepath.Join(full, "trades.csv"), bundle.Trades); err != nil {
		return err
	}
	if err := writeCurveCSV(filepath.Join(full, "equity_curve.csv"), bundle.Curve); err != nil {
		return err
	}
	if err := atomicWriteJSON(filepath.Join(full, "metrics.json"), bundle.Metrics); err != nil {
		return err
	}
	if err := atomicWriteFile(filepath.Join(full, "report.md"), []byte(bundle.ReportMD)); err != nil {
		return err
	}
	if bundle.Diagnostics != nil {
		if err := atomicWriteJSON(filepath.Join(full, "rule_replay_diagnostics.json"), bundle.Diagnostics); err != nil {
			return err
		}
	}
	return nil
}

func writeTradesCSV(path string, trades []model.Trade) error {
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return &model.StoreError{Op: "fs.create trades.csv", Err: err, Retryable: false}
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"symbol", "side", "entry_ts", "exit_ts", "entry_price", "exit_price",
		"qty", "entry_fee", "exit_fee", "pnl_gross", "pnl_net", "entry_score", "exit_score", "reason"})
	for _, t := range trades {
		_ = w.Write([]string{
			t.Symbol, string(t.Side),
			canonicalTS(t.EntryTS), canonicalTS(t.ExitTS),
			fmt.Sprintf("%.8f", t.EntryPrice), fmt.Sprintf("%.8f", t.ExitPrice),
			fmt.Sprintf("%.8f", t.Qty),
			fmt.Sprintf("%.8f", t.EntryFee), fmt.Sprintf("%.8f", t.ExitFee),
			fmt.Sprintf("%.8f", t.PnLGross), fmt.Sprintf("%.8f", t.PnLNet),
			fmt.Sprintf("%d", t.EntryScore), fmt.Sprintf("%d", t.ExitScore),
			string(t.Reason),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.write trades.csv", Err: err, Retryable: false}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.close trades.csv", Err: err, Retryable: false}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &model.StoreError{Op: "fs.rename trades.csv", Err: err, Retryable: false}
	}
	return nil
}

func writeCurveCSV(path string, curve []model.EquityPoint) error {
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.Create(tmp)
	if err != nil {
		return &model.StoreError{Op: "fs.create equity_curve.csv", Err: err, Retryable: false}
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"timestamp", "equity"})
	for _, p := range curve {
		_ = w.Write([]string{canonicalTS(p.TS), fmt.Sprintf("%.8f", p.Equity)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.write equity_curve.csv", Err: err, Retryable: false}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.close equity_curve.csv", Err: err, Retryable: false}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &model.StoreError{Op: "fs.rename equity_curve.csv", Err: err, Retryable: false}
	}
	return nil
}

// canonicalTS renders t as UTC "YYYY-MM-DD HH:MM:SS" (spec §8 round-trip law).
func canonicalTS(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// WriteJSONAtomic exposes the tmpfile+rename JSON writer for callers outside
// this package (walk-forward summaries, comparator artifacts) that need the
// same torn-write protection without going through an ArtifactSink.
func WriteJSONAtomic(path string, v any) error { return atomicWriteJSON(path, v) }

// WriteFileAtomic exposes the tmpfile+rename raw writer for the same callers.
func WriteFileAtomic(path string, b []byte) error { return atomicWriteFile(path, b) }

// WriteCSVAtomic writes rows (including header) as CSV via tmpfile+rename.
func WriteCSVAtomic(path string, rows [][]string) error {
	tmp := filepath.Join(filepath.Dir(path), ".csv.tmp-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return &model.StoreError{Op: "fs.create " + filepath.Base(path), Err: err, Retryable: false}
	}
	w := csv.NewWriter(f)
	for _, row := range rows {
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.write " + filepath.Base(path), Err: err, Retryable: false}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.close " + filepath.Base(path), Err: err, Retryable: false}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &model.StoreError{Op: "fs.rename " + filepath.Base(path), Err: err, Retryable: false}
	}
	return nil
}

func atomicWriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &model.StoreError{Op: "json.Marshal " + filepath.Base(path), Err: err, Retryable: false}
	}
	return atomicWriteFile(path, b)
}

func atomicWriteFile(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return &model.StoreError{Op: "fs.write " + filepath.Base(path), Err: err, Retryable: false}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &model.StoreError{Op: "fs.rename " + filepath.Base(path), Err: err, Retryable: false}
	}
	return nil
}

// FSRunStateSink persists run_state.json at <root>/run_state.json via
// tmpfile+rename.
type FSRunStateSink struct {
	Path string
}

func NewFSRunStateSink(path string) *FSRunStateSink {
	return &FSRunStateSink{Path: path}
}

func (s *FSRunStateSink) Write(_ context.Context, state model.RunState) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return &model.StoreError{Op: "fs.mkdir run_state", Err: err, Retryable: false}
	}
	return atomicWriteJSON(s.Path, state)
}

// FILE: internal/model/runstate.go
// Package model – RunState: the externally-visible lifecycle document for
// one backtest run, written atomically so external readers never observe a
// torn JSON (spec §3, §5).
package model

import "time"

// Status is the coarse lifecycle phase of a run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Stage names the sub-phase of a running backtest.
type Stage string

const (
	StageLoadingSignals        Stage = "loading_signals"
	StageLoadingIndicatorTbls  Stage = "loading_indicator_tables"
	StageLoadingCandles        Stage = "loading_candles"
	StageReplayingSignals      Stage = "replaying_signals"
	StageExecuting             Stage = "executing"
	StageWriting               Stage = "writing"
	StageRetention             Stage = "retention"
	StageDone                  Stage = "done"
)

// RunState is the JSON document persisted at
// <root>/artifacts/backtest/run_state.json.
type RunState struct {
	Status      Status    `json:"status"`
	Stage       Stage     `json:"stage"`
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	LatestRunID string    `json:"latest_run_id,omitempty"`
	Message     string    `json:"message,omitempty"`
	Error       string    `json:"error,omitempty"`
}

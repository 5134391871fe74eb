// FILE: internal/walkforward/windows.go
// Package walkforward – Rolling train/test window generator (C9).
package walkforward

import (
	"time"

	"github.com/tradecore/backsignal/internal/barclock"
)

// Window is one fold's train and test regions.
type Window struct {
	Index       int
	TrainStart  time.Time
	TrainEnd    time.Time
	TestStart   time.Time
	TestEnd     time.Time
}

// BuildWindows slides step_days across [start, end), producing one Window
// per step whose test region is non-empty. trainDays sets the length of the
// train region that precedes each test region; nothing is computed over the
// train region here. maxFolds caps the result length when > 0.
func BuildWindows(start, end time.Time, trainDays, testDays, stepDays, maxFolds int) []Window {
	if stepDays <= 0 {
		stepDays = 1
	}
	var out []Window
	idx := 0
	trainStart := start
	for trainStart.Before(end) {
		trainEnd := trainStart.AddDate(0, 0, trainDays)
		if !trainEnd.Before(end) {
			break
		}
		testEnd := trainEnd.AddDate(0, 0, testDays)
		if testEnd.After(end) {
			testEnd = end
		}
		if !testEnd.After(trainEnd) {
			trainStart = trainStart.AddDate(0, 0, stepDays)
			continue
		}
		out = append(out, Window{
			Index:      idx,
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
		idx++
		if maxFolds > 0 && len(out) >= maxFolds {
			break
		}
		trainStart = trainStart.AddDate(0, 0, stepDays)
	}
	return out
}

// AsBarclockWindow returns the fold's test region as a barclock.Window.
func (w Window) AsBarclockWindow() barclock.Window {
	return barclock.Window{Start: w.TestStart, End: w.TestEnd}
}

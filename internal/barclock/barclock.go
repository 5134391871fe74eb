// FILE: internal/barclock/barclock.go
// Package barclock – Time & bucket utilities (C1).
//
// Parses timestamps to UTC, floors them to minute/bar boundaries, resolves
// date windows, and maps timeframe strings ("1m","5m","1h","1d") to minute
// counts. Every timestamp that crosses a core boundary passes through here
// first so the rest of the pipeline only ever sees UTC instants.
package barclock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseUTC parses s as RFC3339 or UNIX seconds and normalizes to UTC.
func ParseUTC(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("barclock: bad timestamp %q", s)
}

// FloorMinute truncates t to the start of its minute, in UTC.
func FloorMinute(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), 0, 0, time.UTC)
}

// FloorToTimeframe truncates t to the start of the bar it belongs to for the
// given timeframe string.
func FloorToTimeframe(t time.Time, timeframe string) (time.Time, error) {
	mins, err := TimeframeMinutes(timeframe)
	if err != nil {
		return time.Time{}, err
	}
	u := t.UTC()
	if mins < 60 {
		floored := FloorMinute(u)
		m := floored.Minute() - (floored.Minute() % mins)
		return time.Date(floored.Year(), floored.Month(), floored.Day(), floored.Hour(), m, 0, 0, time.UTC), nil
	}
	if mins < 1440 {
		hours := mins / 60
		floored := time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), 0, 0, 0, time.UTC)
		h := floored.Hour() - (floored.Hour() % hours)
		return time.Date(floored.Year(), floored.Month(), floored.Day(), h, 0, 0, 0, time.UTC), nil
	}
	days := mins / 1440
	floored := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if days <= 1 {
		return floored, nil
	}
	epochDays := int(floored.Unix() / 86400)
	back := epochDays % days
	return floored.AddDate(0, 0, -back), nil
}

// TimeframeMinutes maps a timeframe string to a minute count.
func TimeframeMinutes(tf string) (int, error) {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if tf == "" {
		return 0, fmt.Errorf("barclock: empty timeframe")
	}
	unit := tf[len(tf)-1]
	numPart := tf[:len(tf)-1]
	n, err := strconv.Atoi(numPart)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("barclock: bad timeframe %q", tf)
	}
	switch unit {
	case 'm':
		return n, nil
	case 'h':
		return n * 60, nil
	case 'd':
		return n * 1440, nil
	default:
		return 0, fmt.Errorf("barclock: unknown timeframe unit in %q", tf)
	}
}

// Window is a half-open [Start, End) UTC date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow parses two flexible timestamps into a UTC Window, validating
// that Start is strictly before End.
func ResolveWindow(start, end string) (Window, error) {
	s, err := ParseUTC(start)
	if err != nil {
		return Window{}, fmt.Errorf("barclock: start: %w", err)
	}
	e, err := ParseUTC(end)
	if err != nil {
		return Window{}, fmt.Errorf("barclock: end: %w", err)
	}
	if !s.Before(e) {
		return Window{}, fmt.Errorf("barclock: start %s is not before end %s", s, e)
	}
	return Window{Start: s, End: e}, nil
}

// Days returns the inclusive day span covered by the window, rounded up.
func (w Window) Days() int {
	d := w.End.Sub(w.Start)
	days := int(d.Hours() / 24)
	if d.Hours()-float64(days*24) > 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// Contains reports whether t falls within [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

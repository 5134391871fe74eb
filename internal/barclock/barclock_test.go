// FILE: internal/barclock/barclock_test.go
package barclock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUTC_RFC3339AndUnix(t *testing.T) {
	got, err := ParseUTC("2024-01-02T03:04:05Z")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got)

	got2, err := ParseUTC("1704164645")
	assert.NoError(t, err)
	assert.Equal(t, time.Unix(1704164645, 0).UTC(), got2)

	_, err = ParseUTC("not a time")
	assert.Error(t, err)
}

func TestFloorMinute(t *testing.T) {
	in := time.Date(2024, 1, 2, 3, 4, 59, 999, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC), FloorMinute(in))
}

func TestFloorToTimeframe(t *testing.T) {
	in := time.Date(2024, 1, 2, 3, 37, 12, 0, time.UTC)

	m5, err := FloorToTimeframe(in, "5m")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 35, 0, 0, time.UTC), m5)

	h4, err := FloorToTimeframe(in, "4h")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), h4)

	d1, err := FloorToTimeframe(in, "1d")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d1)
}

func TestTimeframeMinutes(t *testing.T) {
	cases := map[string]int{"1m": 1, "5m": 5, "1h": 60, "4h": 240, "1d": 1440}
	for tf, want := range cases {
		got, err := TimeframeMinutes(tf)
		assert.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := TimeframeMinutes("bogus")
	assert.Error(t, err)
	_, err = TimeframeMinutes("")
	assert.Error(t, err)
	_, err = TimeframeMinutes("0m")
	assert.Error(t, err)
}

func TestResolveWindow(t *testing.T) {
	w, err := ResolveWindow("2024-01-01T00:00:00Z", "2024-01-03T00:00:00Z")
	assert.NoError(t, err)
	assert.Equal(t, 2, w.Days())

	_, err = ResolveWindow("2024-01-03T00:00:00Z", "2024-01-01T00:00:00Z")
	assert.Error(t, err, "start must be strictly before end")
}

func TestWindow_Contains(t *testing.T) {
	w := Window{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End), "window is half-open")
	assert.False(t, w.Contains(w.Start.Add(-time.Second)))
}

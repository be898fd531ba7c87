package datewindow

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"parkwatch-backend/lib/timezone"
)

func TestGenerateDeterministic(t *testing.T) {
	today := timezone.Date(2026, time.January, 5)
	a := Generate(today, DefaultConfig())
	b := Generate(today, DefaultConfig())
	require.Empty(t, cmp.Diff(a, b))
	require.NotEmpty(t, a)
}

func TestGenerateInvariants(t *testing.T) {
	today := timezone.Date(2026, time.January, 5)
	windows := Generate(today, DefaultConfig())

	seen := map[[2]string]bool{}
	last := time.Time{}
	for _, w := range windows {
		// nights always derivable from the date pair, counted in
		// calendar days so DST transitions don't skew the result
		nights := 0
		for d := w.CheckIn; d.Before(w.CheckOut); d = d.AddDate(0, 0, 1) {
			nights++
		}
		require.Equal(t, w.Nights, nights)
		require.True(t, w.CheckOut.After(w.CheckIn))

		// unique by (check-in, check-out)
		k := [2]string{
			w.CheckIn.Format(time.DateOnly),
			w.CheckOut.Format(time.DateOnly),
		}
		require.False(t, seen[k], "duplicate window %v", k)
		seen[k] = true

		// sorted by check-in
		require.False(t, w.CheckIn.Before(last))
		last = w.CheckIn

		// check-in never before today+offset floor
		require.False(t, w.CheckIn.Before(today.AddDate(0, 0, 7)))
	}
}

func TestGenerateAnchorWeekdays(t *testing.T) {
	cfg := Config{
		DaysAhead: []int{10},
		StayTypes: map[string]StayType{
			"weekend": {CheckInDay: time.Friday, Nights: 2},
			"midweek": {CheckInDay: time.Monday, Nights: 4},
		},
	}
	// monday 2026-01-05 + 10 days = thursday 2026-01-15
	today := timezone.Date(2026, time.January, 5)
	windows := Generate(today, cfg)
	require.Len(t, windows, 2)

	// next friday on/after the 15th is the 16th, next monday the 19th
	require.Equal(t, "2026-01-16", windows[0].CheckIn.Format(time.DateOnly))
	require.Equal(t, "2026-01-18", windows[0].CheckOut.Format(time.DateOnly))
	require.Equal(t, "weekend", windows[0].StayType)
	require.Equal(t, "2026-01-19", windows[1].CheckIn.Format(time.DateOnly))
	require.Equal(t, "2026-01-23", windows[1].CheckOut.Format(time.DateOnly))
	require.Equal(t, "midweek", windows[1].StayType)
}

func TestGenerateAnchorOnTargetDay(t *testing.T) {
	cfg := Config{
		DaysAhead: []int{4},
		StayTypes: map[string]StayType{
			"weekend": {CheckInDay: time.Friday, Nights: 2},
		},
	}
	// monday + 4 days lands exactly on friday, no shift expected
	today := timezone.Date(2026, time.January, 5)
	windows := Generate(today, cfg)
	require.Len(t, windows, 1)
	require.Equal(t, "2026-01-09", windows[0].CheckIn.Format(time.DateOnly))
}

func TestGenerateDedup(t *testing.T) {
	cfg := Config{
		// offsets close enough to resolve to the same friday
		DaysAhead: []int{7, 8},
		StayTypes: map[string]StayType{
			"weekend": {CheckInDay: time.Friday, Nights: 2},
		},
	}
	// today is a saturday: +7 = saturday, +8 = sunday, both resolve to
	// the friday after
	today := timezone.Date(2026, time.January, 3)
	windows := Generate(today, cfg)
	require.Len(t, windows, 1)
	require.Equal(t, "2026-01-16", windows[0].CheckIn.Format(time.DateOnly))
}

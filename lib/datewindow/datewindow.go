// Package datewindow produces the canonical set of stay windows to
// query on a scrape run: for every "days ahead" offset, the next
// occurrence of each stay type's check-in weekday on or after that
// offset, paired with the stay's night count.
package datewindow

import (
	"slices"
	"time"
)

type StayType struct {
	CheckInDay time.Weekday
	Nights     int
}

type Config struct {
	DaysAhead []int
	StayTypes map[string]StayType
}

// DefaultConfig returns a fresh copy of the stay pattern the parks are
// tracked on. Callers may mutate the result freely.
func DefaultConfig() Config {
	return Config{
		DaysAhead: []int{7, 14, 21, 30, 45, 60, 90},
		StayTypes: map[string]StayType{
			"weekend": {CheckInDay: time.Friday, Nights: 2},
			"midweek": {CheckInDay: time.Monday, Nights: 4},
			"week":    {CheckInDay: time.Friday, Nights: 7},
		},
	}
}

type Window struct {
	CheckIn  time.Time
	CheckOut time.Time
	StayType string
	Nights   int
}

// Generate is pure: same today, same config, same output. Windows are
// deduplicated by (check-in, check-out) and sorted by check-in.
func Generate(today time.Time, cfg Config) []Window {
	today = midnight(today)

	type key struct {
		in, out string
	}
	seen := map[key]bool{}
	var windows []Window

	for _, daysAhead := range cfg.DaysAhead {
		target := today.AddDate(0, 0, daysAhead)
		for name, stay := range cfg.StayTypes {
			daysUntil := (int(stay.CheckInDay) - int(target.Weekday()) + 7) % 7
			checkIn := target.AddDate(0, 0, daysUntil)
			checkOut := checkIn.AddDate(0, 0, stay.Nights)

			k := key{checkIn.Format(time.DateOnly), checkOut.Format(time.DateOnly)}
			if seen[k] {
				continue
			}
			seen[k] = true

			windows = append(windows, Window{
				CheckIn:  checkIn,
				CheckOut: checkOut,
				StayType: name,
				Nights:   stay.Nights,
			})
		}
	}

	slices.SortFunc(windows, func(a, b Window) int {
		if c := a.CheckIn.Compare(b.CheckIn); c != 0 {
			return c
		}
		return a.Nights - b.Nights
	})
	return windows
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		panic(err)
	}
}

// force the timezone to the parks' local time, the hosts running the
// nightly scrape aren't guaranteed to be in NL and date arithmetic via
// <time.Time>.Year()/Month()/Day() would drift across midnight otherwise
func Now() time.Time {
	return time.Now().In(Location)
}

// Date returns midnight of the given calendar day in the parks' timezone.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, Location)
}

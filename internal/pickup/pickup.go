// Package pickup assigns orders to a weekly pickup day.
package pickup

import "time"

// daysAheadAfterCutoff maps a weekday to the distance to the next pickup Friday once
// the Wednesday cutoff has passed.
var daysAheadAfterCutoff = map[time.Weekday]int{
	time.Sunday:   5,
	time.Thursday: 8,
	time.Friday:   7,
	time.Saturday: 6,
}

// WeekStart returns the pickup date, at midnight in now's location, for an order placed
// at now. Orders placed Monday through Wednesday 23:58 are picked up that Friday; later
// orders roll to the following Friday. An order at Wednesday 23:59 still lands on that
// Friday.
func WeekStart(now time.Time) time.Time {
	day := now.Weekday()

	var daysAhead int
	if isBeforeCutoff(now) {
		daysAhead = int(time.Friday - day)
	} else if d, ok := daysAheadAfterCutoff[day]; ok {
		daysAhead = d
	} else {
		daysAhead = (int(time.Friday-day) + 7) % 7
		if daysAhead == 0 {
			daysAhead = 7
		}
	}

	y, m, d := now.Date()
	return time.Date(y, m, d+daysAhead, 0, 0, 0, 0, now.Location())
}

func isBeforeCutoff(now time.Time) bool {
	day := now.Weekday()
	if day < time.Monday || day > time.Wednesday {
		return false
	}
	return !(day == time.Wednesday && now.Hour() == 23 && now.Minute() >= 59)
}

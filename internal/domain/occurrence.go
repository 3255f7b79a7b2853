package domain

import "time"

// NextOccurrence returns the first instant >= now at which the weekly
// (day, hhmm) slot occurs, in now's location. An instant equal to now counts
// as not yet passed; anything earlier today rolls to next week.
func NextOccurrence(day Weekday, hhmm string, now time.Time) (time.Time, error) {
	if !day.Valid() {
		return time.Time{}, ErrInvalidDay
	}
	h, m, err := ParseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}

	sameDay := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location())
	daysAhead := (int(day) - int(WeekdayOf(now)) + 7) % 7
	if daysAhead == 0 && sameDay.Before(now) {
		daysAhead = 7
	}
	// AddDate keeps the wall clock across DST shifts.
	return sameDay.AddDate(0, 0, daysAhead), nil
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// Weekday is a day of the week indexed Monday=0 … Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// Weekdays lists all days in canonical order.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = [...]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// ParseWeekday accepts an English weekday name in any case.
func ParseWeekday(s string) (Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range weekdayNames {
		if n == name {
			return Weekday(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}

// WeekdayOf returns the Weekday of t in t's location.
func WeekdayOf(t time.Time) Weekday {
	// time.Weekday is Sunday=0.
	return Weekday((int(t.Weekday()) + 6) % 7)
}

func (d Weekday) Valid() bool { return d >= Monday && d <= Sunday }

// String returns the canonical lowercase name.
func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// Title returns the capitalized name used in messages, e.g. "Monday".
func (d Weekday) Title() string {
	s := d.String()
	if !d.Valid() {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDay      = errors.New("invalid day")
	ErrInvalidTime     = errors.New("invalid time, expected HH:MM")
	ErrEmptySubject    = errors.New("empty subject")
	ErrInvalidReminder = errors.New("invalid reminder")
	ErrInvalidRef      = errors.New("expected format: Day, HH:MM, Subject")
)

var clockRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateTime checks a strict 24-hour "HH:MM" string (leading zero required).
func ValidateTime(s string) error {
	if !clockRe.MatchString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return nil
}

// ParseClock splits a valid "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	if err := ValidateTime(s); err != nil {
		return 0, 0, err
	}
	hour, _ = strconv.Atoi(s[:2])
	minute, _ = strconv.Atoi(s[3:])
	return hour, minute, nil
}

// NormalizeSubject trims the subject and rejects an empty one.
func NormalizeSubject(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptySubject
	}
	return s, nil
}

// LessonRef is a natural key typed in by the user.
type LessonRef struct {
	Day     Weekday
	Time    string
	Subject string
}

// ParseLessonRef parses "Monday, 14:00, Calculus 2". The subject may not
// contain further commas.
func ParseLessonRef(s string) (LessonRef, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return LessonRef{}, ErrInvalidRef
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	day, err := ParseWeekday(parts[0])
	if err != nil {
		return LessonRef{}, err
	}
	if err := ValidateTime(parts[1]); err != nil {
		return LessonRef{}, err
	}
	subject, err := NormalizeSubject(parts[2])
	if err != nil {
		return LessonRef{}, err
	}
	return LessonRef{Day: day, Time: parts[1], Subject: subject}, nil
}

// DefaultLocation is the UTC+6 fallback used when the tz database lacks the
// configured zone.
var DefaultLocation = time.FixedZone("UTC+6", 6*60*60)

// LoadLocation resolves an IANA zone name, falling back to DefaultLocation.
func LoadLocation(tz string) (*time.Location, error) {
	if tz == "" {
		return DefaultLocation, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DefaultLocation, err
	}
	return loc, nil
}

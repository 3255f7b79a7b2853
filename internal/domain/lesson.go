package domain

import (
	"strings"
	"time"
)

// Lesson is one weekly class a user wants to be reminded about.
type Lesson struct {
	Day          Weekday
	Time         string // HH:MM, 24h
	Subject      string
	Reminder     Reminder
	LastNotified *time.Time // reminder instant already delivered, nil if never
}

// Matches reports whether l has the natural key (day, time, subject).
// Subject is compared case-insensitively, time exactly.
func (l Lesson) Matches(day Weekday, hhmm, subject string) bool {
	return l.Day == day && l.Time == hhmm && strings.EqualFold(l.Subject, subject)
}

// Key returns the natural key with the subject lowercased.
func (l Lesson) Key() LessonRef {
	return LessonRef{Day: l.Day, Time: l.Time, Subject: strings.ToLower(l.Subject)}
}

// Clone returns a copy that shares no memory with l.
func (l Lesson) Clone() Lesson {
	if l.LastNotified != nil {
		t := *l.LastNotified
		l.LastNotified = &t
	}
	return l
}

// CloneAll deep-copies a lesson slice. A nil input yields an empty slice.
func CloneAll(ls []Lesson) []Lesson {
	out := make([]Lesson, len(ls))
	for i, l := range ls {
		out[i] = l.Clone()
	}
	return out
}

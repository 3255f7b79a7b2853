package domain

import "time"

// ReminderWindow is how long after the reminder instant a sweep may still
// deliver it.
const ReminderWindow = 60 * time.Second

// Decision is the outcome of evaluating one lesson at one instant.
type Decision struct {
	Due        bool
	LessonAt   time.Time // next occurrence
	ReminderAt time.Time // LessonAt minus the lead; zero when reminders are off
}

// Evaluate decides whether l's reminder must be sent at now. A reminder is due
// during [ReminderAt, ReminderAt+ReminderWindow) unless LastNotified already
// equals ReminderAt.
func Evaluate(l Lesson, now time.Time) Decision {
	if !l.Reminder.Enabled() {
		return Decision{}
	}
	lessonAt, err := NextOccurrence(l.Day, l.Time, now)
	if err != nil {
		return Decision{}
	}
	d := Decision{
		LessonAt:   lessonAt,
		ReminderAt: lessonAt.Add(-l.Reminder.Lead()),
	}
	if l.LastNotified != nil && l.LastNotified.In(now.Location()).Equal(d.ReminderAt) {
		return d
	}
	windowEnd := d.ReminderAt.Add(ReminderWindow)
	d.Due = !now.Before(d.ReminderAt) && now.Before(windowEnd)
	return d
}

// IsDue is Evaluate(l, now).Due.
func IsDue(l Lesson, now time.Time) bool {
	return Evaluate(l, now).Due
}

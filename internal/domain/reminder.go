package domain

import (
	"fmt"
	"strings"
	"time"
)

// Reminder is the lead time before a lesson at which a reminder fires.
// The zero value means no reminder.
type Reminder int

const (
	ReminderNone Reminder = iota
	Reminder5Min
	Reminder15Min
	Reminder30Min
	Reminder1Hour
)

// Reminders lists the variants that actually fire, shortest first.
var Reminders = []Reminder{Reminder5Min, Reminder15Min, Reminder30Min, Reminder1Hour}

var reminderLabels = [...]string{"No reminder", "5 min", "15 min", "30 min", "1 hour"}

var reminderLeads = [...]time.Duration{0, 5 * time.Minute, 15 * time.Minute, 30 * time.Minute, time.Hour}

// ParseReminder maps a stored label ("15 min", "1 hour", "No reminder") to a Reminder.
func ParseReminder(s string) (Reminder, error) {
	label := strings.TrimSpace(s)
	for i, l := range reminderLabels {
		if strings.EqualFold(l, label) {
			return Reminder(i), nil
		}
	}
	return ReminderNone, fmt.Errorf("%w: %q", ErrInvalidReminder, s)
}

// ReminderFromMinutes maps 5/15/30/60 to a Reminder; anything else is None.
func ReminderFromMinutes(m int) Reminder {
	for _, r := range Reminders {
		if r.Lead() == time.Duration(m)*time.Minute {
			return r
		}
	}
	return ReminderNone
}

func (r Reminder) valid() bool { return r >= ReminderNone && r <= Reminder1Hour }

// Enabled reports whether the reminder ever fires.
func (r Reminder) Enabled() bool { return r != ReminderNone && r.valid() }

// Lead is the offset before the lesson start; zero for None.
func (r Reminder) Lead() time.Duration {
	if !r.valid() {
		return 0
	}
	return reminderLeads[r]
}

// Minutes is Lead in whole minutes.
func (r Reminder) Minutes() int { return int(r.Lead() / time.Minute) }

// String returns the persisted label.
func (r Reminder) String() string {
	if !r.valid() {
		return reminderLabels[ReminderNone]
	}
	return reminderLabels[r]
}

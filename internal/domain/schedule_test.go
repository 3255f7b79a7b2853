package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-05-05 is a Monday.
func bishkek(d, hh, mm, ss int) time.Time {
	return time.Date(2025, time.May, d, hh, mm, ss, 0, DefaultLocation)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name string
		day  Weekday
		time string
		now  time.Time
		want time.Time
	}{
		{
			name: "later today",
			day:  Monday,
			time: "09:00",
			now:  bishkek(5, 8, 0, 0),
			want: bishkek(5, 9, 0, 0),
		},
		{
			name: "now equals occurrence",
			day:  Monday,
			time: "09:00",
			now:  bishkek(5, 9, 0, 0),
			want: bishkek(5, 9, 0, 0),
		},
		{
			name: "one second late rolls a week",
			day:  Monday,
			time: "09:00",
			now:  bishkek(5, 9, 0, 1),
			want: bishkek(12, 9, 0, 0),
		},
		{
			name: "later this week",
			day:  Thursday,
			time: "14:30",
			now:  bishkek(5, 23, 59, 0),
			want: bishkek(8, 14, 30, 0),
		},
		{
			name: "sunday to monday",
			day:  Monday,
			time: "00:10",
			now:  bishkek(11, 23, 40, 0),
			want: bishkek(12, 0, 10, 0),
		},
		{
			name: "earlier weekday wraps",
			day:  Sunday,
			time: "10:00",
			now:  bishkek(6, 10, 0, 0),
			want: bishkek(11, 10, 0, 0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextOccurrence(tt.day, tt.time, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNextOccurrence_Properties(t *testing.T) {
	times := []string{"00:00", "07:45", "12:00", "18:30", "23:59"}
	for hour := 0; hour < 24*7; hour += 5 {
		now := bishkek(5, 0, 0, 0).Add(time.Duration(hour)*time.Hour + 17*time.Minute + 3*time.Second)
		for _, day := range Weekdays {
			for _, hhmm := range times {
				got, err := NextOccurrence(day, hhmm, now)
				require.NoError(t, err)

				assert.False(t, got.Before(now), "%s %s from %s", day, hhmm, now)
				assert.True(t, got.Before(now.Add(7*24*time.Hour)))
				assert.Equal(t, day, WeekdayOf(got))
				assert.Equal(t, hhmm, got.Format("15:04"))
				assert.Equal(t, 0, got.Second())
				assert.Equal(t, now.Location(), got.Location())
			}
		}
	}
}

func TestNextOccurrence_Invalid(t *testing.T) {
	_, err := NextOccurrence(Monday, "9:00", bishkek(5, 8, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidTime)

	_, err = NextOccurrence(Weekday(9), "09:00", bishkek(5, 8, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidDay)
}

func TestEvaluate_Scenario(t *testing.T) {
	l := Lesson{Day: Monday, Time: "09:00", Subject: "Calculus 2", Reminder: Reminder15Min}

	d := Evaluate(l, bishkek(5, 8, 45, 0))
	require.True(t, d.Due)
	assert.True(t, bishkek(5, 8, 45, 0).Equal(d.ReminderAt))
	assert.True(t, bishkek(5, 9, 0, 0).Equal(d.LessonAt))

	marker := bishkek(5, 8, 45, 0)
	l.LastNotified = &marker
	assert.False(t, IsDue(l, bishkek(5, 8, 45, 30)))
}

func TestEvaluate_Window(t *testing.T) {
	l := Lesson{Day: Monday, Time: "09:00", Subject: "Physics", Reminder: Reminder15Min}
	r := bishkek(5, 8, 45, 0)

	assert.False(t, IsDue(l, r.Add(-time.Nanosecond)))
	assert.True(t, IsDue(l, r))
	assert.True(t, IsDue(l, r.Add(ReminderWindow-time.Nanosecond)))
	assert.False(t, IsDue(l, r.Add(ReminderWindow)))
}

func TestEvaluate_FiresOncePerOccurrence(t *testing.T) {
	l := Lesson{Day: Friday, Time: "10:00", Subject: "History", Reminder: Reminder1Hour}
	r := bishkek(9, 9, 0, 0)

	// Marker persisted in another zone still matches.
	marker := r.UTC()
	l.LastNotified = &marker
	for s := 0; s < 60; s += 7 {
		assert.False(t, IsDue(l, r.Add(time.Duration(s)*time.Second)))
	}

	// A stale marker from last week does not block this week.
	stale := r.AddDate(0, 0, -7)
	l.LastNotified = &stale
	assert.True(t, IsDue(l, r))
}

func TestEvaluate_WeekRollover(t *testing.T) {
	// Monday 00:10 with a 30 min lead fires on Sunday evening.
	l := Lesson{Day: Monday, Time: "00:10", Subject: "Early", Reminder: Reminder30Min}
	d := Evaluate(l, bishkek(11, 23, 40, 0))
	assert.True(t, d.Due)
	assert.True(t, bishkek(11, 23, 40, 0).Equal(d.ReminderAt))
}

func TestEvaluate_NeverDue(t *testing.T) {
	now := bishkek(5, 8, 45, 0)
	off := Lesson{Day: Monday, Time: "09:00", Subject: "Art", Reminder: ReminderNone}
	assert.False(t, IsDue(off, now))

	unknown := Lesson{Day: Monday, Time: "09:00", Subject: "Art", Reminder: Reminder(42)}
	assert.False(t, IsDue(unknown, now))

	badTime := Lesson{Day: Monday, Time: "9am", Subject: "Art", Reminder: Reminder15Min}
	assert.False(t, IsDue(badTime, now))
}

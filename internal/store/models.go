package store

import (
	"time"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// lessonRecord is the persisted shape shared by both backends. Field names
// match the legacy lessons_data.json file.
type lessonRecord struct {
	Day              string  `json:"day" db:"day"`
	Time             string  `json:"time" db:"time"`
	Subject          string  `json:"subject" db:"subject"`
	NotificationTime string  `json:"notification_time" db:"notification_time"`
	LastNotified     *string `json:"last_notified" db:"last_notified"`
}

// Legacy files may hold naive timestamps; they are read in the reference zone.
const naiveLayout = "2006-01-02T15:04:05"

func toRecord(l domain.Lesson) lessonRecord {
	return lessonRecord{
		Day:              l.Day.String(),
		Time:             l.Time,
		Subject:          l.Subject,
		NotificationTime: l.Reminder.String(),
		LastNotified:     toNullString(l.LastNotified),
	}
}

// fromRecord converts a stored record. Unknown reminder labels become
// ReminderNone; an unknown day or malformed time is an error.
func fromRecord(r lessonRecord) (domain.Lesson, error) {
	day, err := domain.ParseWeekday(r.Day)
	if err != nil {
		return domain.Lesson{}, err
	}
	if err := domain.ValidateTime(r.Time); err != nil {
		return domain.Lesson{}, err
	}
	rem, _ := domain.ParseReminder(r.NotificationTime)
	return domain.Lesson{
		Day:          day,
		Time:         r.Time,
		Subject:      r.Subject,
		Reminder:     rem,
		LastNotified: fromNullString(r.LastNotified),
	}, nil
}

// fromRecords skips records that cannot be represented (unknown day or
// malformed time); they can never be scheduled. SaveUser keeps them on disk.
func fromRecords(rs []lessonRecord) []domain.Lesson {
	out := make([]domain.Lesson, 0, len(rs))
	for _, r := range rs {
		l, err := fromRecord(r)
		if err != nil {
			continue
		}
		out = append(out, l)
	}
	return out
}

// mergeRecords renders lessons for saving over the user's stored records.
// Stored records that do not decode are carried over unchanged after the
// lessons. A stored label or marker string is reused when it decodes to the
// lesson's current value, so values this version does not understand
// survive writes that do not touch them.
func mergeRecords(stored []lessonRecord, lessons []domain.Lesson) []lessonRecord {
	pool := make(map[domain.LessonRef][]lessonRecord)
	var passthrough []lessonRecord
	for _, r := range stored {
		l, err := fromRecord(r)
		if err != nil {
			passthrough = append(passthrough, r)
			continue
		}
		pool[l.Key()] = append(pool[l.Key()], r)
	}

	out := make([]lessonRecord, 0, len(lessons)+len(passthrough))
	for _, l := range lessons {
		rec := toRecord(l)
		if raws := pool[l.Key()]; len(raws) > 0 {
			raw := raws[0]
			pool[l.Key()] = raws[1:]
			prev, _ := fromRecord(raw)
			if prev.Reminder == l.Reminder {
				rec.NotificationTime = raw.NotificationTime
			}
			if sameMarker(prev.LastNotified, l.LastNotified) {
				rec.LastNotified = raw.LastNotified
			}
		}
		out = append(out, rec)
	}
	return append(out, passthrough...)
}

func sameMarker(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func toNullString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

// fromNullString parses an ISO-8601 marker; unparseable markers read as nil.
func fromNullString(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		t, err = time.ParseInLocation(naiveLayout, *s, domain.DefaultLocation)
		if err != nil {
			return nil
		}
	}
	return &t
}

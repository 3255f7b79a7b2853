// Package schedule builds day-grouped, time-sorted views of a user's lessons
// and renders them as Telegram HTML.
package schedule

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// DayGroup holds one weekday's lessons sorted by time.
type DayGroup struct {
	Day     domain.Weekday
	Lessons []domain.Lesson
}

// Week groups lessons Monday→Sunday, each day sorted by time. Days without
// lessons are omitted. Lessons at the same time keep their stored order.
func Week(lessons []domain.Lesson) []DayGroup {
	byDay := make(map[domain.Weekday][]domain.Lesson)
	for _, l := range lessons {
		byDay[l.Day] = append(byDay[l.Day], l)
	}
	var groups []DayGroup
	for _, d := range domain.Weekdays {
		ls, ok := byDay[d]
		if !ok {
			continue
		}
		sortByTime(ls)
		groups = append(groups, DayGroup{Day: d, Lessons: ls})
	}
	return groups
}

// Sorted flattens Week into one ordered list.
func Sorted(lessons []domain.Lesson) []domain.Lesson {
	out := make([]domain.Lesson, 0, len(lessons))
	for _, g := range Week(lessons) {
		out = append(out, g.Lessons...)
	}
	return out
}

// ForDay returns the lessons on day, sorted by time.
func ForDay(lessons []domain.Lesson, day domain.Weekday) []domain.Lesson {
	var out []domain.Lesson
	for _, l := range lessons {
		if l.Day == day {
			out = append(out, l)
		}
	}
	sortByTime(out)
	return out
}

// Today returns the lessons on now's weekday.
func Today(lessons []domain.Lesson, now time.Time) []domain.Lesson {
	return ForDay(lessons, domain.WeekdayOf(now))
}

// Tomorrow returns the lessons on the weekday after now.
func Tomorrow(lessons []domain.Lesson, now time.Time) []domain.Lesson {
	return ForDay(lessons, domain.WeekdayOf(now.AddDate(0, 0, 1)))
}

func sortByTime(ls []domain.Lesson) {
	sort.SliceStable(ls, func(i, j int) bool { return ls[i].Time < ls[j].Time })
}

// RenderWeek renders the full weekly schedule.
func RenderWeek(groups []DayGroup) string {
	var b strings.Builder
	b.WriteString("📅 <b>Your Weekly Schedule:</b>\n\n")
	for _, g := range groups {
		fmt.Fprintf(&b, "<b>📌 %s:</b>\n", g.Day.Title())
		for _, l := range g.Lessons {
			fmt.Fprintf(&b, "   • %s - %s <i>(⏰ %s)</i>\n", l.Time, html.EscapeString(l.Subject), l.Reminder)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderDay renders a numbered list of one day's lessons. when is "today" or
// "tomorrow" and is used in the heading and footer.
func RenderDay(when string, date time.Time, lessons []domain.Lesson) string {
	dateText := date.Format("Monday, January 02, 2006")
	if len(lessons) == 0 {
		return fmt.Sprintf("📅 <b>%s</b>\n\n😴 No lessons scheduled for %s!\n\n"+
			"Use /schedule to view your full weekly schedule.", dateText, when)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📅 <b>%s's Lessons (%s)</b>\n\n", capitalize(when), dateText)
	for i, l := range lessons {
		fmt.Fprintf(&b, "<b>%d. %s</b>\n   🕐 Time: %s\n   %s\n\n", i+1, html.EscapeString(l.Subject), l.Time, reminderLine(l.Reminder))
	}
	fmt.Fprintf(&b, "📚 Total: %d lesson(s) %s", len(lessons), when)
	return b.String()
}

// RenderRefs lists lessons in week order as "Day, HH:MM, Subject" lines,
// the form the reminder toggle expects as input.
func RenderRefs(lessons []domain.Lesson) string {
	var b strings.Builder
	for _, l := range Sorted(lessons) {
		fmt.Fprintf(&b, "• <code>%s, %s, %s</code> (⏰ %s)\n", l.Day.Title(), l.Time, html.EscapeString(l.Subject), l.Reminder)
	}
	return b.String()
}

func reminderLine(r domain.Reminder) string {
	if !r.Enabled() {
		return "🔕 No reminder"
	}
	return fmt.Sprintf("🔔 Reminder: %s before", r)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package telegram

import (
	"sync"
	"time"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

// sessionState is the step a user is at in a multi-step flow.
type sessionState int

const (
	stateIdle sessionState = iota

	// add lesson
	stateAwaitCourseName
	stateAwaitDay
	stateAwaitTime
	stateAwaitReminderChoice
	stateAwaitLead

	// remove lesson
	stateAwaitRemoveDay
	stateAwaitRemoveLesson

	// change reminder
	stateAwaitUpdateLesson
	stateAwaitUpdateLead
)

var stateNames = map[sessionState]string{
	stateIdle:                "idle",
	stateAwaitCourseName:     "await_course_name",
	stateAwaitDay:            "await_day",
	stateAwaitTime:           "await_time",
	stateAwaitReminderChoice: "await_reminder_choice",
	stateAwaitLead:           "await_lead",
	stateAwaitRemoveDay:      "await_remove_day",
	stateAwaitRemoveLesson:   "await_remove_lesson",
	stateAwaitUpdateLesson:   "await_update_lesson",
	stateAwaitUpdateLead:     "await_update_lead",
}

func (s sessionState) String() string { return stateNames[s] }

// lessonDraft collects the add-lesson answers.
type lessonDraft struct {
	Subject string
	Day     domain.Weekday
	Time    string
}

// session is one user's flow state and its typed payload.
type session struct {
	State sessionState

	Draft lessonDraft

	AllLessons    []domain.Lesson // snapshot taken when removal starts
	RemoveDay     domain.Weekday
	RemoveChoices []domain.Lesson // lessons on RemoveDay, sorted by time

	UpdateTarget domain.LessonRef

	touched time.Time
}

// sessionTable holds in-memory sessions keyed by user id. A session idle for
// longer than ttl reads as idle.
type sessionTable struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[int64]session
}

func newSessionTable(ttl time.Duration) *sessionTable {
	return &sessionTable{ttl: ttl, now: time.Now, m: make(map[int64]session)}
}

// get returns the user's session, or an idle one if absent or expired.
func (t *sessionTable) get(userID int64) session {
	t.mu.RLock()
	s, ok := t.m[userID]
	t.mu.RUnlock()
	if !ok {
		return session{}
	}
	if t.ttl > 0 && t.now().Sub(s.touched) > t.ttl {
		t.reset(userID)
		return session{}
	}
	return s
}

// set stores s; an idle state removes the entry.
func (t *sessionTable) set(userID int64, s session) {
	if s.State == stateIdle {
		t.reset(userID)
		return
	}
	s.touched = t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[userID] = s
}

func (t *sessionTable) reset(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, userID)
}

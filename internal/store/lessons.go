package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/lesson-bot/internal/domain"
)

var (
	_ Repo    = (*LessonStore)(nil)
	_ Backend = (*SQLiteBackend)(nil)
	_ Backend = (*JSONBackend)(nil)
)

// LessonStore implements Repo over a Backend. Every mutation is a
// load-modify-save of one user's list under that user's lock.
//
// Updates and removals apply to every record sharing the natural key, so
// duplicates created by Add stay consistent with each other.
type LessonStore struct {
	backend      Backend
	log          *zap.Logger
	templateUser string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLessonStore wraps a backend. An empty templateUser disables seeding.
func NewLessonStore(b Backend, log *zap.Logger, templateUser string) *LessonStore {
	return &LessonStore{
		backend:      b,
		log:          log,
		templateUser: templateUser,
		locks:        make(map[string]*sync.Mutex),
	}
}

// lockUser acquires the user's write lock and returns its release func.
func (s *LessonStore) lockUser(user string) func() {
	s.mu.Lock()
	l, ok := s.locks[user]
	if !ok {
		l = &sync.Mutex{}
		s.locks[user] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Close releases the backend.
func (s *LessonStore) Close() error {
	return s.backend.Close()
}

// Add appends a lesson. Duplicates are not checked.
func (s *LessonStore) Add(ctx context.Context, user string, day domain.Weekday, hhmm, subject string, r domain.Reminder) (domain.Lesson, error) {
	if !day.Valid() {
		return domain.Lesson{}, domain.ErrInvalidDay
	}
	if err := domain.ValidateTime(hhmm); err != nil {
		return domain.Lesson{}, err
	}
	subject, err := domain.NormalizeSubject(subject)
	if err != nil {
		return domain.Lesson{}, err
	}

	unlock := s.lockUser(user)
	defer unlock()

	lessons, err := s.backend.LoadUser(ctx, user)
	if err != nil {
		return domain.Lesson{}, fmt.Errorf("load lessons: %w", err)
	}
	l := domain.Lesson{Day: day, Time: hhmm, Subject: subject, Reminder: r}
	lessons = append(lessons, l)
	if err := s.backend.SaveUser(ctx, user, lessons); err != nil {
		return domain.Lesson{}, fmt.Errorf("save lessons: %w", err)
	}
	return l, nil
}

// Remove deletes lessons matching the natural key and reports whether any did.
func (s *LessonStore) Remove(ctx context.Context, user string, day domain.Weekday, hhmm, subject string) (bool, error) {
	subject = strings.TrimSpace(subject)
	return s.modify(ctx, user, func(lessons []domain.Lesson) ([]domain.Lesson, bool) {
		kept := lessons[:0]
		for _, l := range lessons {
			if !l.Matches(day, hhmm, subject) {
				kept = append(kept, l)
			}
		}
		return kept, len(kept) < len(lessons)
	})
}

// UpdateReminder changes the reminder lead of matching lessons.
func (s *LessonStore) UpdateReminder(ctx context.Context, user string, day domain.Weekday, hhmm, subject string, r domain.Reminder) (bool, error) {
	subject = strings.TrimSpace(subject)
	return s.modify(ctx, user, func(lessons []domain.Lesson) ([]domain.Lesson, bool) {
		found := false
		for i := range lessons {
			if lessons[i].Matches(day, hhmm, subject) {
				lessons[i].Reminder = r
				found = true
			}
		}
		return lessons, found
	})
}

// UpdateLastNotified records the reminder instant delivered for matching lessons.
func (s *LessonStore) UpdateLastNotified(ctx context.Context, user string, day domain.Weekday, hhmm, subject string, at time.Time) (bool, error) {
	return s.modify(ctx, user, func(lessons []domain.Lesson) ([]domain.Lesson, bool) {
		found := false
		for i := range lessons {
			if lessons[i].Matches(day, hhmm, subject) {
				t := at
				lessons[i].LastNotified = &t
				found = true
			}
		}
		return lessons, found
	})
}

// modify runs fn on the user's lessons and saves only if fn reports a change.
func (s *LessonStore) modify(ctx context.Context, user string, fn func([]domain.Lesson) ([]domain.Lesson, bool)) (bool, error) {
	unlock := s.lockUser(user)
	defer unlock()

	lessons, err := s.backend.LoadUser(ctx, user)
	if err != nil {
		return false, fmt.Errorf("load lessons: %w", err)
	}
	if len(lessons) == 0 {
		return false, nil
	}
	updated, changed := fn(lessons)
	if !changed {
		return false, nil
	}
	if err := s.backend.SaveUser(ctx, user, updated); err != nil {
		return false, fmt.Errorf("save lessons: %w", err)
	}
	return true, nil
}

// ListForUser returns the user's lessons in insertion order. A backend read
// failure is logged and reads as an empty list.
func (s *LessonStore) ListForUser(ctx context.Context, user string) ([]domain.Lesson, error) {
	lessons, err := s.backend.LoadUser(ctx, user)
	if err != nil {
		s.log.Warn("load user lessons failed, treating as empty", zap.String("user", user), zap.Error(err))
		return []domain.Lesson{}, nil
	}
	return domain.CloneAll(lessons), nil
}

// ListAll returns a snapshot of every user's lessons. A backend read failure
// is logged and reads as an empty dataset.
func (s *LessonStore) ListAll(ctx context.Context) (map[string][]domain.Lesson, error) {
	all, err := s.backend.LoadAll(ctx)
	if err != nil {
		s.log.Warn("load all lessons failed, treating as empty", zap.Error(err))
		return map[string][]domain.Lesson{}, nil
	}
	out := make(map[string][]domain.Lesson, len(all))
	for user, lessons := range all {
		out[user] = domain.CloneAll(lessons)
	}
	return out, nil
}

// SeedFromTemplate copies the template user's lessons to a user who has none.
// It reports whether a copy happened.
func (s *LessonStore) SeedFromTemplate(ctx context.Context, user string) (bool, error) {
	if s.templateUser == "" || user == s.templateUser {
		return false, nil
	}

	unlock := s.lockUser(user)
	defer unlock()

	own, err := s.backend.LoadUser(ctx, user)
	if err != nil {
		return false, fmt.Errorf("load lessons: %w", err)
	}
	if len(own) > 0 {
		return false, nil
	}
	tmpl, err := s.backend.LoadUser(ctx, s.templateUser)
	if err != nil {
		return false, fmt.Errorf("load template lessons: %w", err)
	}
	if len(tmpl) == 0 {
		return false, nil
	}
	if err := s.backend.SaveUser(ctx, user, domain.CloneAll(tmpl)); err != nil {
		return false, fmt.Errorf("save seeded lessons: %w", err)
	}
	s.log.Info("seeded schedule from template",
		zap.String("user", user),
		zap.String("template", s.templateUser),
		zap.Int("lessons", len(tmpl)),
	)
	return true, nil
}
